package device

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// HostDeviceName selects the host device in Select.
const HostDeviceName = "host"

// List returns the host device followed by any compute devices detected on
// this system. Devices are returned uninitialized.
func List(workers int) ([]Device, error) {
	list := []Device{NewHost(workers)}

	clDevices, err := openclDevices()
	if err != nil {
		return nil, err
	}
	return append(list, clDevices...), nil
}

// Select returns the first device whose type matches typeMask and whose
// name contains the given filter. The "host" filter (or an empty filter)
// always selects the host device.
func Select(typeMask Type, filter string, workers int) (Device, error) {
	if filter == "" || filter == HostDeviceName {
		return NewHost(workers), nil
	}

	list, err := List(workers)
	if err != nil {
		return nil, err
	}
	for _, d := range list {
		if d.Type()&typeMask != d.Type() {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name()), strings.ToLower(filter)) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrNoDevice, filter)
}

// Table renders a device list as a text table.
func Table(list []Device) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"#", "Name", "Type"})
	for index, d := range list {
		table.Append([]string{fmt.Sprint(index), d.Name(), d.Type().String()})
	}
	table.Render()
	return buf.String()
}
