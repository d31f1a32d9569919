package client

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// MediaSource owns the local capture tracks for one session. Acquisition is
// asynchronous with unbounded latency (device permission prompts); Ready is
// closed once acquisition settled, successfully or not. Mute and video
// toggles act on the existing tracks and never touch handshake state.
type MediaSource interface {
	Ready() <-chan struct{}
	Tracks() []webrtc.TrackLocal
	Err() error
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)
	AudioEnabled() bool
	VideoEnabled() bool
	Close() error
}

// SampleMedia is a MediaSource backed by pion static sample tracks. The
// capture pipeline feeding WriteAudio/WriteVideo lives outside this package;
// disabled tracks silently drop their samples, which is the Go analogue of
// flipping a browser track's enabled flag.
type SampleMedia struct {
	ready chan struct{}

	mu     sync.Mutex
	audio  *webrtc.TrackLocalStaticSample
	video  *webrtc.TrackLocalStaticSample
	err    error
	closed bool

	audioOn atomic.Bool
	videoOn atomic.Bool
}

// NewSampleMedia starts acquiring an audio and a video track. The returned
// source is usable immediately; callers wait on Ready before reading Tracks.
func NewSampleMedia() *SampleMedia {
	m := &SampleMedia{ready: make(chan struct{})}
	m.audioOn.Store(true)
	m.videoOn.Store(true)

	go m.acquire()
	return m
}

func (m *SampleMedia) acquire() {
	defer close(m.ready)

	streamID := "quickmeet-" + uuid.New().String()

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		m.fail(err)
		return
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		m.fail(err)
		return
	}

	m.mu.Lock()
	if !m.closed {
		m.audio = audio
		m.video = video
	}
	m.mu.Unlock()
}

func (m *SampleMedia) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *SampleMedia) Ready() <-chan struct{} { return m.ready }

func (m *SampleMedia) Tracks() []webrtc.TrackLocal {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tracks []webrtc.TrackLocal
	if m.audio != nil {
		tracks = append(tracks, m.audio)
	}
	if m.video != nil {
		tracks = append(tracks, m.video)
	}
	return tracks
}

func (m *SampleMedia) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *SampleMedia) SetAudioEnabled(enabled bool) { m.audioOn.Store(enabled) }
func (m *SampleMedia) SetVideoEnabled(enabled bool) { m.videoOn.Store(enabled) }
func (m *SampleMedia) AudioEnabled() bool           { return m.audioOn.Load() }
func (m *SampleMedia) VideoEnabled() bool           { return m.videoOn.Load() }

// WriteAudio feeds a captured audio sample to the track. Samples written
// while muted are dropped.
func (m *SampleMedia) WriteAudio(sample media.Sample) error {
	if !m.audioOn.Load() {
		return nil
	}
	m.mu.Lock()
	track := m.audio
	m.mu.Unlock()
	if track == nil {
		return nil
	}
	return track.WriteSample(sample)
}

// WriteVideo feeds a captured video sample to the track. Samples written
// while video is off are dropped.
func (m *SampleMedia) WriteVideo(sample media.Sample) error {
	if !m.videoOn.Load() {
		return nil
	}
	m.mu.Lock()
	track := m.video
	m.mu.Unlock()
	if track == nil {
		return nil
	}
	return track.WriteSample(sample)
}

func (m *SampleMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.audio = nil
	m.video = nil
	return nil
}
