package source

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// DefaultDeviceID selects the system default input device.
const DefaultDeviceID = -1

// Initialize sets up the PortAudio subsystem. Must be paired with
// Terminate and called before any capture source starts.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initializing portaudio: %v", ErrDeviceUnavailable, err)
	}
	return nil
}

// Terminate shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("source: terminating portaudio: %w", err)
	}
	return nil
}

// InputDevice resolves a device ID to a PortAudio input device.
// DefaultDeviceID returns the system default.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == DefaultDeviceID {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input: %v", ErrDeviceUnavailable, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: listing devices: %v", ErrDeviceUnavailable, err)
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("%w: invalid device ID %d", ErrDeviceUnavailable, deviceID)
	}
	if devices[deviceID].MaxInputChannels == 0 {
		return nil, fmt.Errorf("%w: device %d has no input channels", ErrDeviceUnavailable, deviceID)
	}
	return devices[deviceID], nil
}

// ListDevices prints every audio device with its ID, direction,
// channel counts and default sample rate.
func ListDevices() error {
	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("%w: listing devices: %v", ErrDeviceUnavailable, err)
	}

	fmt.Printf("\nAvailable audio devices\n\n")
	for i, device := range devices {
		direction := "output"
		switch {
		case device.MaxInputChannels > 0 && device.MaxOutputChannels > 0:
			direction = "input/output"
		case device.MaxInputChannels > 0:
			direction = "input"
		}

		fmt.Printf("[%d] %s (%s)\n", i, device.Name, direction)
		fmt.Printf("    channels in=%d out=%d, default rate %.0f Hz\n",
			device.MaxInputChannels, device.MaxOutputChannels, device.DefaultSampleRate)
		fmt.Printf("    input latency low=%.2fms high=%.2fms\n\n",
			device.DefaultLowInputLatency.Seconds()*1000,
			device.DefaultHighInputLatency.Seconds()*1000)
	}
	return nil
}
