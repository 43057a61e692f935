package domain

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement
	DeviceClass       string // temperature, humidity, connectivity
	EntityCategory    string // diagnostic, config, nil
	Icon              string
	// StateId selects the state topic, ValueTemplate extracts this sensor's
	// value from the payload published there
	StateId       string
	ValueTemplate string
	Precision     *uint
	ExpireAfter   uint
}
