// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values. Every key has a
// default, so a config file only lists what differs.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDFlight  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicStatus string

	// Telemetry
	TelemetryInterval int // milliseconds

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// LEDs and motors
	LEDRedPin        string
	LEDGreenPin      string
	MotorPins        []string
	MotorFrequencyHz int
	MotorMinPulseUS  int
	MotorMaxPulseUS  int

	// Loop timing
	LoopTimeUS         int
	GyroCalibrationMS  int
	AccelCalibrationMS int
	RCPeriodMS         int
	AccelWindowMS      int
	SmallAngleDeg      float64

	// Receiver
	RCSerialPort   string // iBus UART; empty selects the scripted receiver
	RCMinCheck     float64
	RCMaxCheck     float64
	RCAuxThreshold float64
	RCCyclicExpo   float64
	RCYawExpo      float64
	RCMaxYawDemand float64

	// Stabilizer
	LevelP                 float64
	LevelI                 float64
	CyclicP                float64
	CyclicI                float64
	CyclicD                float64
	YawP                   float64
	YawI                   float64
	YawD                   float64
	GyroWindupMax          float64
	AngleWindupMaxDeg      float64
	BigGyroRateDPS         float64
	BigYawDemand           float64
	MaxCyclicDemand        float64
	AngleDemandScale       float64
	MaxAngleInclinationDeg float64
	YawJumpOffset          float64

	// GPS; empty port disables the GPS task
	GPSSerialPort string
	GPSBaudRate   int

	// Barometer; empty device disables the barometer task
	BaroSPIDevice string
	BaroInterval  int // milliseconds

	// Display
	DisplayEnabled        bool
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Simulator
	SimIdleSleepUS int
}

// Package-level unexported variables for the singleton: InitGlobal sets
// globalConfig once, Get reads it under a read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration of the reference quadcopter.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDFlight:  "flight-computer",
		MQTTClientIDConsole: "flight-console-subscriber",
		MQTTClientIDWeb:     "flight-web-subscriber",
		TopicStatus:         "flight/status",
		TelemetryInterval:   50,

		IMUSPIDevice:  "/dev/spidev0.0",
		IMUCSPin:      "8",
		IMUAccelRange: 2,
		IMUGyroRange:  3,

		LEDRedPin:        "5",
		LEDGreenPin:      "6",
		MotorPins:        []string{"12", "13", "18", "19"},
		MotorFrequencyHz: 400,
		MotorMinPulseUS:  1000,
		MotorMaxPulseUS:  2000,

		LoopTimeUS:         3500,
		GyroCalibrationMS:  3500,
		AccelCalibrationMS: 500,
		RCPeriodMS:         20,
		AccelWindowMS:      500,
		SmallAngleDeg:      25,

		RCMinCheck:     -0.8,
		RCMaxCheck:     0.8,
		RCAuxThreshold: 0.4,
		RCCyclicExpo:   0.65,
		RCYawExpo:      0,
		RCMaxYawDemand: 1.0,

		LevelP:                 0.20,
		LevelI:                 0,
		CyclicP:                0.225,
		CyclicI:                0.001875,
		CyclicD:                0.375,
		YawP:                   1.0625,
		YawI:                   0.005625,
		YawD:                   0,
		GyroWindupMax:          16,
		AngleWindupMaxDeg:      1000,
		BigGyroRateDPS:         40,
		BigYawDemand:           0.1,
		MaxCyclicDemand:        0.5,
		AngleDemandScale:       1,
		MaxAngleInclinationDeg: 50,
		YawJumpOffset:          0.1,

		GPSBaudRate:  9600,
		BaroInterval: 100,

		DisplayI2CBus:         "",
		DisplayUpdateInterval: 250,

		WebServerPort: 8080,

		SimIdleSleepUS: 200,
	}
}

// Load reads the configuration file over the defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines over the defaults. Blank lines and lines
// starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_FLIGHT":
		c.MQTTClientIDFlight = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TELEMETRY_INTERVAL":
		c.TelemetryInterval, err = parseInt(key, value)

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// LEDs and motors
	case "LED_RED_PIN":
		c.LEDRedPin = value
	case "LED_GREEN_PIN":
		c.LEDGreenPin = value
	case "MOTOR_PINS":
		c.MotorPins = splitList(value)
	case "MOTOR_FREQUENCY_HZ":
		c.MotorFrequencyHz, err = parseInt(key, value)
	case "MOTOR_MIN_PULSE_US":
		c.MotorMinPulseUS, err = parseInt(key, value)
	case "MOTOR_MAX_PULSE_US":
		c.MotorMaxPulseUS, err = parseInt(key, value)

	// Loop timing
	case "LOOP_TIME_US":
		c.LoopTimeUS, err = parseInt(key, value)
	case "GYRO_CALIBRATION_MS":
		c.GyroCalibrationMS, err = parseInt(key, value)
	case "ACCEL_CALIBRATION_MS":
		c.AccelCalibrationMS, err = parseInt(key, value)
	case "RC_PERIOD_MS":
		c.RCPeriodMS, err = parseInt(key, value)
	case "ACCEL_WINDOW_MS":
		c.AccelWindowMS, err = parseInt(key, value)
	case "SMALL_ANGLE_DEG":
		c.SmallAngleDeg, err = parseFloat(key, value)

	// Receiver
	case "RC_SERIAL_PORT":
		c.RCSerialPort = value
	case "RC_MIN_CHECK":
		c.RCMinCheck, err = parseFloat(key, value)
	case "RC_MAX_CHECK":
		c.RCMaxCheck, err = parseFloat(key, value)
	case "RC_AUX_THRESHOLD":
		c.RCAuxThreshold, err = parseFloat(key, value)
	case "RC_CYCLIC_EXPO":
		c.RCCyclicExpo, err = parseFloat(key, value)
	case "RC_YAW_EXPO":
		c.RCYawExpo, err = parseFloat(key, value)
	case "RC_MAX_YAW_DEMAND":
		c.RCMaxYawDemand, err = parseFloat(key, value)

	// Stabilizer
	case "LEVEL_P":
		c.LevelP, err = parseFloat(key, value)
	case "LEVEL_I":
		c.LevelI, err = parseFloat(key, value)
	case "CYCLIC_P":
		c.CyclicP, err = parseFloat(key, value)
	case "CYCLIC_I":
		c.CyclicI, err = parseFloat(key, value)
	case "CYCLIC_D":
		c.CyclicD, err = parseFloat(key, value)
	case "YAW_P":
		c.YawP, err = parseFloat(key, value)
	case "YAW_I":
		c.YawI, err = parseFloat(key, value)
	case "YAW_D":
		c.YawD, err = parseFloat(key, value)
	case "GYRO_WINDUP_MAX":
		c.GyroWindupMax, err = parseFloat(key, value)
	case "ANGLE_WINDUP_MAX_DEG":
		c.AngleWindupMaxDeg, err = parseFloat(key, value)
	case "BIG_GYRO_RATE_DPS":
		c.BigGyroRateDPS, err = parseFloat(key, value)
	case "BIG_YAW_DEMAND":
		c.BigYawDemand, err = parseFloat(key, value)
	case "MAX_CYCLIC_DEMAND":
		c.MaxCyclicDemand, err = parseFloat(key, value)
	case "ANGLE_DEMAND_SCALE":
		c.AngleDemandScale, err = parseFloat(key, value)
	case "MAX_ANGLE_INCLINATION_DEG":
		c.MaxAngleInclinationDeg, err = parseFloat(key, value)
	case "YAW_JUMP_OFFSET":
		c.YawJumpOffset, err = parseFloat(key, value)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value)

	// Barometer
	case "BARO_SPI_DEVICE":
		c.BaroSPIDevice = value
	case "BARO_INTERVAL":
		c.BaroInterval, err = parseInt(key, value)

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Simulator
	case "SIM_IDLE_SLEEP_US":
		c.SimIdleSleepUS, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validate checks the values the control loop cannot run without.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicStatus == "" {
		return fmt.Errorf("TOPIC_STATUS is required")
	}
	if c.LoopTimeUS <= 0 {
		return fmt.Errorf("LOOP_TIME_US must be positive, got %d", c.LoopTimeUS)
	}
	if c.RCPeriodMS <= 0 {
		return fmt.Errorf("RC_PERIOD_MS must be positive, got %d", c.RCPeriodMS)
	}
	if c.TelemetryInterval <= 0 {
		return fmt.Errorf("TELEMETRY_INTERVAL must be positive, got %d", c.TelemetryInterval)
	}
	// Calibration countdowns are 16-bit cycle counts.
	if n := 1000 * c.GyroCalibrationMS / c.LoopTimeUS; c.GyroCalibrationMS < 0 || n > 65535 {
		return fmt.Errorf("GYRO_CALIBRATION_MS %d gives %d cycles, must be 0-65535", c.GyroCalibrationMS, n)
	}
	if n := 1000 * c.AccelCalibrationMS / c.LoopTimeUS; c.AccelCalibrationMS < 0 || n > 65535 {
		return fmt.Errorf("ACCEL_CALIBRATION_MS %d gives %d cycles, must be 0-65535", c.AccelCalibrationMS, n)
	}
	if c.RCMinCheck >= c.RCMaxCheck {
		return fmt.Errorf("RC_MIN_CHECK (%v) must be below RC_MAX_CHECK (%v)", c.RCMinCheck, c.RCMaxCheck)
	}
	if c.MaxCyclicDemand <= 0 {
		return fmt.Errorf("MAX_CYCLIC_DEMAND must be positive, got %v", c.MaxCyclicDemand)
	}
	if len(c.MotorPins) == 0 {
		return fmt.Errorf("MOTOR_PINS is required")
	}
	if c.MotorFrequencyHz <= 0 {
		return fmt.Errorf("MOTOR_FREQUENCY_HZ must be positive, got %d", c.MotorFrequencyHz)
	}
	if c.MotorMinPulseUS >= c.MotorMaxPulseUS {
		return fmt.Errorf("MOTOR_MIN_PULSE_US (%d) must be below MOTOR_MAX_PULSE_US (%d)", c.MotorMinPulseUS, c.MotorMaxPulseUS)
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required with GPS_SERIAL_PORT")
	}
	if c.DisplayEnabled && c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
	}
	if c.BaroSPIDevice != "" && c.BaroInterval <= 0 {
		return fmt.Errorf("BARO_INTERVAL must be positive, got %d", c.BaroInterval)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
