// Package bassaes67 is the core of an audio-over-IP engine: RTP receive
// and transmit pipelines that keep a producer-rate network stream aligned
// with a consumer-rate host audio pull, synchronized against an external
// reference clock (PTP, Livewire, or a free-running system clock).
//
// The package exposes the host-ABI surface (Stream create/start/stop/free,
// configuration reads by key, callback registration). The timing, RTP, codec,
// and transport machinery live in internal/ subpackages and are not meant
// to be imported directly by a host.
package bassaes67
