// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/flight_computer/internal/imu"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// PiConfig wires the Raspberry Pi board.
type PiConfig struct {
	IMUSPIDevice string // e.g. /dev/spidev0.0
	IMUCSPin     string // GPIO name of the chip select

	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	LEDRedPin   string
	LEDGreenPin string

	MotorPins       []string
	MotorFrequency  physic.Frequency // ESC refresh rate
	MotorMinPulseUS uint32           // pulse at output 0
	MotorMaxPulseUS uint32           // pulse at output 1

	LoopTimeMicros        uint32
	GyroCalibrationMillis uint32
}

// Pi is the physical board: an MPU9250 over SPI, two GPIO LEDs and PWM
// outputs to the ESCs.
type Pi struct {
	cfg   PiConfig
	start time.Time

	imu    *mpu9250.MPU9250
	red    gpio.PinIO
	green  gpio.PinIO
	motors []gpio.PinIO
	period time.Duration
}

// NewPi returns an uninitialized Pi board.
func NewPi(cfg PiConfig) *Pi {
	return &Pi{cfg: cfg}
}

// Init brings up periph, the IMU, LEDs and motor pins.
func (p *Pi) Init() (Info, error) {
	if _, err := host.Init(); err != nil {
		return Info{}, fmt.Errorf("board: periph host init: %w", err)
	}

	cs := gpioreg.ByName(p.cfg.IMUCSPin)
	if cs == nil {
		return Info{}, fmt.Errorf("board: IMU CS pin %q not found", p.cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(p.cfg.IMUSPIDevice, cs)
	if err != nil {
		return Info{}, fmt.Errorf("board: IMU SPI transport (%s): %w", p.cfg.IMUSPIDevice, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return Info{}, fmt.Errorf("board: IMU device creation: %w", err)
	}
	if err := dev.Init(); err != nil {
		return Info{}, fmt.Errorf("board: IMU initialization: %w", err)
	}
	if err := dev.SetAccelRange(p.cfg.IMUAccelRange); err != nil {
		return Info{}, fmt.Errorf("board: set accel range: %w", err)
	}
	if err := dev.SetGyroRange(p.cfg.IMUGyroRange); err != nil {
		return Info{}, fmt.Errorf("board: set gyro range: %w", err)
	}
	log.Printf("board: IMU on %s (accel range %d, gyro range %d)",
		p.cfg.IMUSPIDevice, p.cfg.IMUAccelRange, p.cfg.IMUGyroRange)
	p.imu = dev

	if p.red, err = outputPin(p.cfg.LEDRedPin); err != nil {
		return Info{}, err
	}
	if p.green, err = outputPin(p.cfg.LEDGreenPin); err != nil {
		return Info{}, err
	}

	if p.cfg.MotorFrequency <= 0 {
		return Info{}, fmt.Errorf("board: motor frequency must be positive")
	}
	p.period = p.cfg.MotorFrequency.Period()
	for _, name := range p.cfg.MotorPins {
		pin, err := outputPin(name)
		if err != nil {
			return Info{}, err
		}
		p.motors = append(p.motors, pin)
	}
	log.Printf("board: %d motors at %s", len(p.motors), p.cfg.MotorFrequency)

	p.start = time.Now()
	return Info{
		Acc1G:                 AccelScale(p.cfg.IMUAccelRange),
		GyroScale:             GyroScale(p.cfg.IMUGyroRange),
		LoopTimeMicros:        p.cfg.LoopTimeMicros,
		GyroCalibrationMillis: p.cfg.GyroCalibrationMillis,
	}, nil
}

func outputPin(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("board: pin %q not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("board: pin %s as output: %w", name, err)
	}
	return pin, nil
}

func (p *Pi) Micros() uint32 {
	return uint32(time.Since(p.start).Microseconds())
}

// ReadIMU reads accelerometer and gyroscope counts.
func (p *Pi) ReadIMU() (imu.Sample, error) {
	var s imu.Sample
	var err error
	if s.Ax, err = p.imu.GetAccelerationX(); err != nil {
		return imu.Sample{}, fmt.Errorf("board: accel X: %w", err)
	}
	if s.Ay, err = p.imu.GetAccelerationY(); err != nil {
		return imu.Sample{}, fmt.Errorf("board: accel Y: %w", err)
	}
	if s.Az, err = p.imu.GetAccelerationZ(); err != nil {
		return imu.Sample{}, fmt.Errorf("board: accel Z: %w", err)
	}
	if s.Gx, err = p.imu.GetRotationX(); err != nil {
		return imu.Sample{}, fmt.Errorf("board: gyro X: %w", err)
	}
	if s.Gy, err = p.imu.GetRotationY(); err != nil {
		return imu.Sample{}, fmt.Errorf("board: gyro Y: %w", err)
	}
	if s.Gz, err = p.imu.GetRotationZ(); err != nil {
		return imu.Sample{}, fmt.Errorf("board: gyro Z: %w", err)
	}
	return s, nil
}

// WriteMotors converts outputs in [0,1] to ESC pulse widths.
func (p *Pi) WriteMotors(outputs []float64) error {
	for i, pin := range p.motors {
		if i >= len(outputs) {
			break
		}
		if err := pin.PWM(p.duty(outputs[i]), p.cfg.MotorFrequency); err != nil {
			return fmt.Errorf("board: motor %d PWM: %w", i, err)
		}
	}
	return nil
}

func (p *Pi) duty(out float64) gpio.Duty {
	out = min(1, max(0, out))
	lo := float64(p.cfg.MotorMinPulseUS)
	hi := float64(p.cfg.MotorMaxPulseUS)
	pulse := time.Duration((lo + out*(hi-lo)) * float64(time.Microsecond))
	return gpio.Duty(int64(gpio.DutyMax) * int64(pulse) / int64(p.period))
}

func (p *Pi) LEDRed(on bool) {
	setPin(p.red, on)
}

func (p *Pi) LEDGreen(on bool) {
	setPin(p.green, on)
}

func setPin(pin gpio.PinIO, on bool) {
	if pin == nil {
		return
	}
	if err := pin.Out(gpio.Level(on)); err != nil {
		log.Printf("board: pin %s: %v", pin, err)
	}
}

func (p *Pi) DelayMillis(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Close stops the motors and turns the LEDs off.
func (p *Pi) Close() error {
	var firstErr error
	for i, pin := range p.motors {
		if err := pin.Out(gpio.Low); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("board: motor %d stop: %w", i, err)
		}
	}
	setPin(p.red, false)
	setPin(p.green, false)
	return firstErr
}
