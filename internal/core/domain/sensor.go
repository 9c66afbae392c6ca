package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE              = "bridge"
	SENSOR_ID_CONTROL_OVERALL_STATE     = "control_overall_state"
	SENSOR_ID_CONTROL_MODE_NUM          = "control_mode_num"
	SENSOR_ID_CONTROL_AC_CHARGE_DEMAND  = "control_ac_charge_demand"
	SENSOR_ID_CONTROL_DC_CHARGE_DEMAND  = "control_dc_charge_demand"
	SENSOR_ID_CONTROL_DISCHARGE_ALLOWED = "control_discharge_allowed"
	SENSOR_ID_OVERRIDE_ACTIVE           = "override_active"
	SENSOR_ID_OVERRIDE_END_TIME         = "override_end_time"
	SENSOR_ID_OVERRIDE_CHARGE_POWER     = "override_charge_power"
	SENSOR_ID_BATTERY_SOC               = "battery_soc"
	SENSOR_ID_OPTIMIZATION_STATE        = "optimization_state"
	SENSOR_ID_OPTIMIZATION_LAST_RUN     = "optimization_last_run"
	SENSOR_ID_OPTIMIZATION_NEXT_RUN     = "optimization_next_run"
	SENSOR_ID_OPTIMIZATION_LAST_ERROR   = "optimization_last_error"
	SENSOR_ID_HOME_APPLIANCE_RELEASED   = "home_appliance_released"
	SELECT_ID_OVERRIDE_MODE             = "override_mode"
	INPUT_NUMBER_ID_OVERRIDE_DURATION   = "override_duration"
	INPUT_NUMBER_ID_OVERRIDE_POWER      = "override_grid_charge_power"
	STATE_CLASS_MEASUREMENT             = "measurement"
	DEVICE_CLASS_BATTERY                = "battery"
	DEVICE_CLASS_POWER                  = "power"
	DEVICE_CLASS_TIMESTAMP              = "timestamp"
	DEVICE_CLASS_CONNECTIVITY           = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC             = "diagnostic"
	ENTITY_CLASS_CONFIG                 = "config"
	SENSOR_TYPE_SENSOR                  = "sensor"
	SENSOR_TYPE_BINARY                  = "binary_sensor"
	INPUT_NUMBER_MODE_BOX               = "box"
	INPUT_NUMBER_MODE_SLIDER            = "slider"
	// SELECT_OPTION_AUTO reverts the override when chosen.
	SELECT_OPTION_AUTO = "AUTO"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("eos_connect_%s", md5HashShort(baseTopic)),
		Manufacturer: "EOS Connect",
		Model:        "EOS Connect",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("EOS Connect %s", md5HashShort(baseTopic)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
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
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func ControlSensors(device Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_CONTROL_OVERALL_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Inverter mode",
		Icon:       "mdi:battery-sync",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_CONTROL_OVERALL_STATE),
	})
	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_CONTROL_MODE_NUM,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Inverter mode number",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, SENSOR_ID_CONTROL_MODE_NUM),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_CONTROL_AC_CHARGE_DEMAND,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "AC charge demand",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:transmission-tower-import",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_CONTROL_AC_CHARGE_DEMAND),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_CONTROL_DC_CHARGE_DEMAND,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "DC charge demand",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_CONTROL_DC_CHARGE_DEMAND),
	})
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_CONTROL_DISCHARGE_ALLOWED,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Discharge allowed",
		Icon:       "mdi:battery-arrow-down",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_CONTROL_DISCHARGE_ALLOWED),
	})
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_OVERRIDE_ACTIVE,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Override active",
		Icon:       "mdi:hand-back-right",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_OVERRIDE_ACTIVE),
	})
	sensors = append(sensors, GenericSensor{
		Device:      device,
		Id:          SENSOR_ID_OVERRIDE_END_TIME,
		SensorType:  SENSOR_TYPE_SENSOR,
		Name:        "Override end time",
		DeviceClass: DEVICE_CLASS_TIMESTAMP,
		UniqueId:    uniqueId(device.Id, SENSOR_ID_OVERRIDE_END_TIME),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_OVERRIDE_CHARGE_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Override charge power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_OVERRIDE_CHARGE_POWER),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_BATTERY_SOC),
	})
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_HOME_APPLIANCE_RELEASED,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Home appliance released",
		Icon:       "mdi:dishwasher",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_HOME_APPLIANCE_RELEASED),
	})

	return sensors
}

func OptimizationSensors(device Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_OPTIMIZATION_STATE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Optimization state",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, SENSOR_ID_OPTIMIZATION_STATE),
	})
	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_OPTIMIZATION_LAST_RUN,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Optimization last run",
		DeviceClass:    DEVICE_CLASS_TIMESTAMP,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, SENSOR_ID_OPTIMIZATION_LAST_RUN),
	})
	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_OPTIMIZATION_NEXT_RUN,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Optimization next run",
		DeviceClass:    DEVICE_CLASS_TIMESTAMP,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, SENSOR_ID_OPTIMIZATION_NEXT_RUN),
	})
	sensors = append(sensors, GenericSensor{
		Device:           device,
		Id:               SENSOR_ID_OPTIMIZATION_LAST_ERROR,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Optimization last error",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(device.Id, SENSOR_ID_OPTIMIZATION_LAST_ERROR),
	})

	return sensors
}

// OverrideModeOptions lists the select options, AUTO first.
func OverrideModeOptions() []string {
	options := []string{SELECT_OPTION_AUTO}
	for _, m := range Modes() {
		options = append(options, m.String())
	}
	return options
}

func OverrideSelects(device Device) []GenericSelect {
	return []GenericSelect{{
		Device:   device,
		Id:       SELECT_ID_OVERRIDE_MODE,
		Name:     "Override mode",
		UniqueId: uniqueId(device.Id, SELECT_ID_OVERRIDE_MODE),
		Icon:     "mdi:battery-sync-outline",
		Options:  OverrideModeOptions(),
	}}
}

func OverrideInputNumbers(device Device, maxGridChargePowerW float64) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            device,
		Id:                INPUT_NUMBER_ID_OVERRIDE_DURATION,
		Name:              "Override duration",
		UniqueId:          uniqueId(device.Id, INPUT_NUMBER_ID_OVERRIDE_DURATION),
		Icon:              "mdi:timer-outline",
		UnitOfMeasurement: "min",
		Min:               OVERRIDE_DURATION_MIN.Minutes(),
		Max:               OVERRIDE_DURATION_MAX.Minutes(),
		Step:              OVERRIDE_DURATION_STEP.Minutes(),
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      120,
	})
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            device,
		Id:                INPUT_NUMBER_ID_OVERRIDE_POWER,
		Name:              "Override grid charge power",
		UniqueId:          uniqueId(device.Id, INPUT_NUMBER_ID_OVERRIDE_POWER),
		Icon:              "mdi:transmission-tower-import",
		UnitOfMeasurement: "W",
		Min:               OVERRIDE_MIN_POWER_W,
		Max:               maxGridChargePowerW,
		Step:              100,
		Mode:              INPUT_NUMBER_MODE_SLIDER,
		InitialValue:      maxGridChargePowerW,
	})

	return inputNumbers
}

func uniqueId(baseId, id string) string {
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

func optionalBool(value bool) *bool {
	return &value
}
