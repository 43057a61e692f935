package ws3000

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

const (
	DEFAULT_VENDOR_ID  = 0x0483
	DEFAULT_PRODUCT_ID = 0x5750
)

type USBConfig struct {
	VendorID  uint16
	ProductID uint16
	Interface int
}

// USBTransport talks to the console through its interrupt endpoints.
type USBTransport struct {
	usbCtx *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
}

func USBOpener(cfg USBConfig) TransportOpener {
	return func() (Transport, error) {
		return OpenUSBTransport(cfg)
	}
}

func OpenUSBTransport(cfg USBConfig) (*USBTransport, error) {
	t := &USBTransport{usbCtx: gousb.NewContext()}

	dev, err := t.usbCtx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if err != nil {
		t.Close()
		return nil, transportError("open device", err)
	}
	if dev == nil {
		t.Close()
		return nil, fmt.Errorf("%w: unable to find USB device (0x%04x, 0x%04x)", ErrTransport, cfg.VendorID, cfg.ProductID)
	}
	t.device = dev

	// reset device, required if it was previously left in a bad state
	if err := dev.Reset(); err != nil {
		t.Close()
		return nil, transportError("reset", err)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		t.Close()
		return nil, transportError("detach kernel driver", err)
	}

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		t.Close()
		return nil, transportError("active config", err)
	}
	t.config, err = dev.Config(cfgNum)
	if err != nil {
		t.Close()
		return nil, transportError("set config", err)
	}
	t.intf, err = t.config.Interface(cfg.Interface, 0)
	if err != nil {
		t.Close()
		return nil, transportError("claim interface", err)
	}

	// first IN and first OUT endpoint of the interface
	for _, ep := range t.intf.Setting.Endpoints {
		switch {
		case ep.Direction == gousb.EndpointDirectionIn && t.in == nil:
			t.in, err = t.intf.InEndpoint(ep.Number)
		case ep.Direction == gousb.EndpointDirectionOut && t.out == nil:
			t.out, err = t.intf.OutEndpoint(ep.Number)
		}
		if err != nil {
			t.Close()
			return nil, transportError("endpoint", err)
		}
	}
	if t.in == nil || t.out == nil {
		t.Close()
		return nil, fmt.Errorf("%w: interface %d has no IN/OUT endpoint pair", ErrTransport, cfg.Interface)
	}
	return t, nil
}

func (t *USBTransport) Write(ctx context.Context, frame []byte) (int, error) {
	n, err := t.out.WriteContext(ctx, frame)
	if err != nil {
		return n, transportError("write", err)
	}
	return n, nil
}

func (t *USBTransport) Read(ctx context.Context, buf []byte) (int, error) {
	n, err := t.in.ReadContext(ctx, buf)
	if err != nil {
		return n, transportError("read", err)
	}
	return n, nil
}

func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.config != nil {
		t.config.Close()
		t.config = nil
	}
	var err error
	if t.device != nil {
		err = t.device.Close()
		t.device = nil
	}
	if t.usbCtx != nil {
		t.usbCtx.Close()
		t.usbCtx = nil
	}
	return err
}
