package parking

import (
	"fmt"
	"regexp"
	"strings"
)

var licensePattern = regexp.MustCompile(`^[A-Z0-9]{6,10}$`)

const lightTruckMaxTons = 5.0

// VehicleKind is the pricing category of a vehicle.
type VehicleKind string

const (
	KindMotorcycle VehicleKind = "motorcycle"
	KindCar        VehicleKind = "car"
	KindTruck      VehicleKind = "truck"
)

func ParseVehicleKind(s string) (VehicleKind, error) {
	switch k := VehicleKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMotorcycle, KindCar, KindTruck:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown vehicle kind %q", ErrInvalidVehicle, s)
}

// VehicleDetails is implemented only by Motorcycle, Car and Truck.
type VehicleDetails interface {
	kind() VehicleKind
}

type Motorcycle struct {
	Sidecar bool
}

type Car struct {
	Doors    int
	Electric bool
}

type Truck struct {
	CargoTons float64
	Axles     int
}

func (Motorcycle) kind() VehicleKind { return KindMotorcycle }
func (Car) kind() VehicleKind        { return KindCar }
func (Truck) kind() VehicleKind      { return KindTruck }

// Vehicle is the descriptor supplied with each park request.
type Vehicle struct {
	License string
	Color   string
	Model   string
	Details VehicleDetails
}

func NewVehicle(license, color, model string, details VehicleDetails) Vehicle {
	return Vehicle{
		License: NormalizeLicense(license),
		Color:   color,
		Model:   model,
		Details: details,
	}
}

func NormalizeLicense(license string) string {
	return strings.ToUpper(strings.TrimSpace(license))
}

// Kind returns the vehicle's category, or "" when Details is not a known variant.
func (v Vehicle) Kind() VehicleKind {
	switch d := v.Details.(type) {
	case Motorcycle, Car, Truck:
		return d.kind()
	}
	return ""
}

func (v Vehicle) Validate() error {
	if !licensePattern.MatchString(v.License) {
		return fmt.Errorf("%w: license %q must be 6-10 uppercase letters or digits", ErrInvalidVehicle, v.License)
	}
	if _, err := RequiredSpotSize(v); err != nil {
		return err
	}
	return nil
}

// RequiredSpotSize maps a vehicle variant to the smallest spot size it fits in.
// A truck only fits a standard spot when it declares a light load on two axles.
func RequiredSpotSize(v Vehicle) (SpotSize, error) {
	switch d := v.Details.(type) {
	case Motorcycle:
		if d.Sidecar {
			return SizeStandard, nil
		}
		return SizeCompact, nil
	case Car:
		return SizeStandard, nil
	case Truck:
		if d.CargoTons > 0 && d.CargoTons <= lightTruckMaxTons && d.Axles <= 2 {
			return SizeStandard, nil
		}
		return SizeOversized, nil
	}
	return 0, fmt.Errorf("%w: missing vehicle type", ErrInvalidVehicle)
}

func (v Vehicle) String() string {
	switch d := v.Details.(type) {
	case Motorcycle:
		if d.Sidecar {
			return fmt.Sprintf("Motorcycle %s [%s] %s (with sidecar)", v.License, v.Color, v.Model)
		}
		return fmt.Sprintf("Motorcycle %s [%s] %s", v.License, v.Color, v.Model)
	case Car:
		s := fmt.Sprintf("Car %s [%s] %s (%d doors)", v.License, v.Color, v.Model, d.Doors)
		if d.Electric {
			s += " electric"
		}
		return s
	case Truck:
		return fmt.Sprintf("Truck %s [%s] %s (%.1ft, %d axles)", v.License, v.Color, v.Model, d.CargoTons, d.Axles)
	}
	return v.License
}

// VehicleSpec is the flat form of a vehicle descriptor used by the shell and
// the HTTP API. Fields that do not apply to Kind are ignored.
type VehicleSpec struct {
	Kind      VehicleKind
	Sidecar   bool
	Doors     int
	Electric  bool
	CargoTons float64
	Axles     int
}

func (s VehicleSpec) Details() (VehicleDetails, error) {
	switch s.Kind {
	case KindMotorcycle:
		return Motorcycle{Sidecar: s.Sidecar}, nil
	case KindCar:
		return Car{Doors: s.Doors, Electric: s.Electric}, nil
	case KindTruck:
		if s.CargoTons < 0 || s.Axles < 0 {
			return nil, fmt.Errorf("%w: negative truck dimensions", ErrInvalidVehicle)
		}
		return Truck{CargoTons: s.CargoTons, Axles: s.Axles}, nil
	}
	return nil, fmt.Errorf("%w: unknown vehicle kind %q", ErrInvalidVehicle, s.Kind)
}
