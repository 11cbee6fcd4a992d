//go:build !opencl

package device

// Binaries built without the opencl tag only expose the host device.
func openclDevices() ([]Device, error) {
	return nil, nil
}
