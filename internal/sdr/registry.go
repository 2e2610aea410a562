package sdr

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available by name. It panics on duplicate
// registration, which indicates a programming error at init time.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("sdr: driver %q registered twice", d.Name()))
	}
	drivers[d.Name()] = d
}

// Lookup returns the named driver.
func Lookup(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown SDR driver %q", name)
	}
	return d, nil
}

// Drivers returns the registered driver names in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenFirst enumerates the named driver and opens the first device found,
// mirroring the "open device 0" startup of the field tools. It returns
// ErrNoDevice when enumeration comes back empty.
func OpenFirst(ctx context.Context, driver string) (Device, []DeviceInfo, error) {
	d, err := Lookup(driver)
	if err != nil {
		return nil, nil, err
	}

	infos, err := d.Enumerate(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("enumerating %s devices: %w", driver, err)
	}
	if len(infos) == 0 {
		return nil, nil, ErrNoDevice
	}

	dev, err := d.Open(ctx, infos[0])
	if err != nil {
		return nil, infos, fmt.Errorf("opening device %s: %w", infos[0], err)
	}
	return dev, infos, nil
}
