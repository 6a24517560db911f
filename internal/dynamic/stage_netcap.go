package dynamic

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"whiterabbit/internal/logging"
)

// commandRunner abstracts host tool invocation (tshark) for tests.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

func runHostCommand(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w (stderr: %s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// netcapStage captures network traffic with tcpdump on the device,
// pulls the pcap back, and derives aggregate statistics with tshark:
// frame totals from the io,stat summary, directional byte counts from
// per-packet field extraction. It also renders a human-readable
// traffic log from the same fields.
type netcapStage struct {
	bridge     DeviceBridge
	agg        *Aggregate
	remotePcap string
	localPcap  string
	trafficLog string
	tsharkPath string
	runCmd     commandRunner
}

func (s *netcapStage) Name() string { return "network" }

func (s *netcapStage) Run(ctx context.Context, duration time.Duration) error {
	cmd := fmt.Sprintf("tcpdump -i any -p -s 0 -w %s", s.remotePcap)
	h, err := StartCapture(s.bridge, cmd, s.localPcap+".shell", "tcpdump")
	defer h.Stop(ctx)
	if err != nil {
		return fmt.Errorf("tcpdump failed to start: %w", err)
	}

	observe(ctx, s.Name(), duration)
	h.Stop(ctx)

	if err := s.bridge.Pull(ctx, s.remotePcap, s.localPcap); err != nil {
		return fmt.Errorf("pull pcap file: %w", err)
	}
	logging.Stage("network: pcap saved to %s", s.localPcap)

	run := s.runCmd
	if run == nil {
		run = runHostCommand
	}
	tshark := s.tsharkPath
	if tshark == "" {
		tshark = "tshark"
	}

	summary, err := run(ctx, tshark, "-r", s.localPcap, "-qz", "io,stat,0")
	if err != nil {
		return fmt.Errorf("traffic summary: %w", err)
	}
	frames, _ := parseIOStat(summary)
	s.agg.Set("network_connections", frames)

	raw, err := run(ctx, tshark, "-r", s.localPcap, "-T", "fields",
		"-e", "ip.src", "-e", "ip.dst",
		"-e", "tcp.srcport", "-e", "tcp.dstport",
		"-e", "http.request.uri", "-e", "frame.len")
	if err != nil {
		return fmt.Errorf("packet field extraction: %w", err)
	}

	packets := parsePackets(raw)
	sent, received := splitTraffic(packets)
	s.agg.Set("data_sent_bytes", sent)
	s.agg.Set("data_received_bytes", received)

	if err := os.WriteFile(s.trafficLog, []byte(formatTrafficLog(packets)), 0644); err != nil {
		logging.StageWarn("network: writing traffic log: %v", err)
	}
	return nil
}

// parseIOStat extracts the frame and byte totals from a tshark
// `io,stat,0` table. Data rows carry the interval marker "<>".
func parseIOStat(output string) (frames, bytes int64) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "<>") || !strings.Contains(line, "|") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 4 {
			continue
		}
		f, errF := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
		b, errB := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
		if errF == nil && errB == nil {
			frames += f
			bytes += b
		}
	}
	return frames, bytes
}

// packetRecord is one row of tshark field extraction.
type packetRecord struct {
	SrcIP    string
	DstIP    string
	SrcPort  string
	DstPort  string
	URI      string
	FrameLen int64
}

// parsePackets reads tab-separated tshark field output. Rows with
// fewer than six fields (non-IP frames) are dropped.
func parsePackets(raw string) []packetRecord {
	var packets []packetRecord
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 6 {
			continue
		}
		length, err := strconv.ParseInt(strings.TrimSpace(fields[5]), 10, 64)
		if err != nil {
			continue
		}
		packets = append(packets, packetRecord{
			SrcIP:    strings.TrimSpace(fields[0]),
			DstIP:    strings.TrimSpace(fields[1]),
			SrcPort:  strings.TrimSpace(fields[2]),
			DstPort:  strings.TrimSpace(fields[3]),
			URI:      strings.TrimSpace(fields[4]),
			FrameLen: length,
		})
	}
	return packets
}

// splitTraffic totals frame bytes by direction. Frames sourced from a
// private address count as sent by the device, everything else as
// received.
func splitTraffic(packets []packetRecord) (sent, received int64) {
	for _, p := range packets {
		ip := net.ParseIP(p.SrcIP)
		if ip != nil && (ip.IsPrivate() || ip.IsLoopback()) {
			sent += p.FrameLen
		} else {
			received += p.FrameLen
		}
	}
	return sent, received
}

// formatTrafficLog renders packet records as readable connection lines.
func formatTrafficLog(packets []packetRecord) string {
	var b strings.Builder
	for _, p := range packets {
		fmt.Fprintf(&b, "TCP connection from %s:%s to %s:%s | HTTP request: %s | Packet length: %d bytes\n",
			p.SrcIP, p.SrcPort, p.DstIP, p.DstPort, p.URI, p.FrameLen)
	}
	return b.String()
}
