package device

import (
	"strings"
	"testing"

	"github.com/gordonklaus/portaudio"
)

func testDevices() []*portaudio.DeviceInfo {
	alsa := &portaudio.HostApiInfo{Name: "ALSA"}
	jack := &portaudio.HostApiInfo{Name: "JACK Audio Connection Kit"}
	return []*portaudio.DeviceInfo{
		{Name: "USB Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000, HostApi: alsa},
		{Name: "HDMI Output", MaxOutputChannels: 8, DefaultSampleRate: 48000, HostApi: alsa},
		{Name: "system", MaxInputChannels: 2, DefaultSampleRate: 44100, HostApi: alsa},
		{Name: "system", MaxInputChannels: 2, DefaultSampleRate: 44100, HostApi: jack},
	}
}

func TestSelectDevice_Success(t *testing.T) {
	dev, err := selectDevice("USB Microphone", testDevices())
	if err != nil {
		t.Fatalf("Expected no error for unique device, got: %v", err)
	}
	if dev.MaxInputChannels != 1 {
		t.Errorf("Expected the USB microphone, got %+v", dev)
	}
}

func TestSelectDevice_NotFound(t *testing.T) {
	_, err := selectDevice("nonexistent", testDevices())
	if err == nil {
		t.Fatal("Expected error for nonexistent device")
	}
	if !strings.Contains(err.Error(), "input device not found") {
		t.Errorf("Expected 'input device not found' error, got: %v", err)
	}
}

func TestSelectDevice_OutputOnly(t *testing.T) {
	_, err := selectDevice("HDMI Output", testDevices())
	if err == nil {
		t.Error("Expected error for output-only device")
	}
}

func TestSelectDevice_Duplicates(t *testing.T) {
	_, err := selectDevice("system", testDevices())
	if err == nil {
		t.Fatal("Expected error for duplicate device names")
	}
	if !strings.Contains(err.Error(), "duplicate input devices") {
		t.Errorf("Expected 'duplicate input devices' error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "JACK") {
		t.Errorf("Expected host APIs in error, got: %v", err)
	}
}

func TestInputDevices(t *testing.T) {
	got := inputDevices(testDevices(), "USB Microphone")

	if len(got) != 3 {
		t.Fatalf("Expected 3 input devices, got %d", len(got))
	}
	for _, d := range got {
		if d.Name == "HDMI Output" {
			t.Error("Output-only device should not be listed")
		}
	}
	if !got[0].Default {
		t.Error("Expected USB Microphone to be marked default")
	}
	if got[1].Default || got[2].Default {
		t.Error("Only one device should be marked default")
	}
	if got[2].HostAPI != "JACK Audio Connection Kit" {
		t.Errorf("Expected host API name, got %q", got[2].HostAPI)
	}
}
