package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE    = "bridge"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_TEMPERATURE  = "temperature"
	DEVICE_CLASS_HUMIDITY     = "humidity"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	UNIT_PERCENT              = "%"
	ICON_HUMIDITY             = "mdi:water-percent"
	STATION_MANUFACTURER      = "Ambient Weather"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("ws3000mqtt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ws3000mqtt",
		Model:        "ws3000mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("ws3000mqtt %s", md5HashShort(baseTopic)),
	}
}

// StationDevice is the console as seen by the hub. Its id only depends on
// the configured station id.
func StationDevice(stationId, label, model, version, viaDevice string) Device {
	return Device{
		Id:           stationId,
		Name:         label,
		Model:        model,
		Version:      version,
		Manufacturer: STATION_MANUFACTURER,
		ViaDevice:    viaDevice,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       UniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func UniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func OptionalUint(value uint) *uint {
	return &value
}
