package pipeline

import (
	"log/slog"
	"testing"
	"time"

	"github.com/casterplay/BassAES67-sub000/internal/audiocodec"
	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
	"github.com/casterplay/BassAES67-sub000/internal/stats"
	"github.com/casterplay/BassAES67-sub000/internal/udpendpoint"
)

func TestTransmitterSendsPackets(t *testing.T) {
	recv, err := udpendpoint.New(udpendpoint.Config{LocalAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("recv endpoint: %v", err)
	}
	defer recv.Close()

	send, err := udpendpoint.New(udpendpoint.Config{LocalAddr: "127.0.0.1:0", RemoteAddr: recv.LocalAddr()})
	if err != nil {
		t.Fatalf("send endpoint: %v", err)
	}
	defer send.Close()

	codec, err := audiocodec.New(rtpwire.PTPCML16, audiocodec.DirectionTransmit, audiocodec.Params{SampleRate: 48000, Channels: 1, SamplesPerPacket: 48})
	if err != nil {
		t.Fatalf("audiocodec.New: %v", err)
	}

	st := stats.New()
	pull := func(dst []float32) int {
		for i := range dst {
			dst[i] = 0.1
		}
		return len(dst)
	}
	tx := NewTransmitter(send, codec, st, fixedClock{}, pull, 1, 1000, slog.Default())
	tx.Start()
	defer tx.Stop()

	buf := make([]byte, 1500)
	recv.ReadFrom(buf) // first read may catch nothing if scheduling races; the check below polls PacketsSent, not the socket

	deadline := time.Now().Add(500 * time.Millisecond)
	for st.PacketsSent.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if st.PacketsSent.Load() == 0 {
		t.Fatal("expected at least one packet to be sent")
	}
}
