package ws3000

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DRIVER_VERSION  = "0.3"
	DEFAULT_MODEL   = "WS3000"
	DEFAULT_TIMEOUT = 1000 * time.Millisecond
)

type StationReader interface {
	Open() error
	Close() error
	Model() string
	ReadDeviceConfiguration() (*Record, error)
	ReadCalibration() (*Record, error)
	ReadSensorValues() (*Record, error)
	SyncTime(t time.Time) error
}

type Instrument struct {
	RecordTime func(fnName string, exchangeTime time.Duration)
}

// TransportStationReader runs one request/response exchange at a time over
// a Transport obtained from its opener.
type TransportStationReader struct {
	opener     TransportOpener
	transport  Transport
	model      string
	timeout    time.Duration
	logger     *zap.Logger
	instrument []Instrument
}

func CreateStationReader(opener TransportOpener, model string, timeout time.Duration,
	logger *zap.Logger, instrumentation *Instrument) StationReader {
	var inst []Instrument
	inst = append(inst, traceLoggerInstrumentation(logger))
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}
	if model == "" {
		model = DEFAULT_MODEL
	}
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	return &TransportStationReader{
		opener:     opener,
		model:      model,
		timeout:    timeout,
		logger:     logger,
		instrument: inst,
	}
}

func CreateUSBStationReader(cfg USBConfig, model string, timeout time.Duration,
	logger *zap.Logger, instrumentation *Instrument) StationReader {
	return CreateStationReader(USBOpener(cfg), model, timeout,
		logger.With(zap.String("target", "usb"), zap.String("device", fmt.Sprintf("%04x:%04x", cfg.VendorID, cfg.ProductID))),
		instrumentation)
}

func (r *TransportStationReader) Open() error {
	r.Close()
	r.logger.Info("starting initialization of the station driver", zap.String("version", DRIVER_VERSION))
	t, err := r.opener()
	if err != nil {
		return transportError("open", err)
	}
	r.transport = t
	r.logger.Info("station initialization complete", zap.String("model", r.model))
	return nil
}

func (r *TransportStationReader) Close() error {
	if r.transport == nil {
		return nil
	}
	err := r.transport.Close()
	r.transport = nil
	return err
}

func (r *TransportStationReader) Model() string {
	return r.model
}

func (r *TransportStationReader) ReadDeviceConfiguration() (*Record, error) {
	return r.exchange(CMD_DEVICE_CONFIGURATION)
}

func (r *TransportStationReader) ReadCalibration() (*Record, error) {
	return r.exchange(CMD_CALIBRATION_VALUES)
}

func (r *TransportStationReader) ReadSensorValues() (*Record, error) {
	return r.exchange(CMD_SENSOR_VALUES)
}

func (r *TransportStationReader) SyncTime(t time.Time) error {
	defer RecordTimer(CMD_SYNC_TIME.String(), r.instrument)()
	if r.transport == nil {
		return fmt.Errorf("%w: device not open", ErrTransport)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	frame := EncodeSyncTime(t)
	r.logger.Debug("write", zap.String("frame", Hex(frame)))
	if _, err := r.transport.Write(ctx, frame); err != nil {
		return transportError("write", err)
	}
	return nil
}

func (r *TransportStationReader) exchange(cmd Command) (*Record, error) {
	defer RecordTimer(cmd.String(), r.instrument)()
	if r.transport == nil {
		return nil, fmt.Errorf("%w: device not open", ErrTransport)
	}
	req, err := EncodeCommand(cmd)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	r.logger.Debug("sending request", zap.Stringer("command", cmd))
	if _, err := r.transport.Write(ctx, req); err != nil {
		return nil, transportError("write", err)
	}
	buf := make([]byte, FrameSize)
	n, err := r.transport.Read(ctx, buf)
	if err != nil {
		return nil, transportError("read", err)
	}
	r.logger.Debug("read", zap.String("frame", Hex(buf[:n])))
	return DecodeFrame(buf[:n], cmd)
}

func RecordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) Instrument {
	return Instrument{
		RecordTime: func(fnName string, exchangeTime time.Duration) {
			logger.Debug(fmt.Sprintf("usb [%s]: %d millis", fnName, exchangeTime.Milliseconds()))
		},
	}
}
