package regions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Input is the raw region form as typed by a user.
type Input struct {
	Title     string  `json:"title" validate:"required,notblank"`
	Radius    string  `json:"radius" validate:"required,radius"`
	Network   string  `json:"network" validate:"required,notblank"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("radius", func(fl validator.FieldLevel) bool {
		r, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
		return err == nil && r > 0
	})
	return v
}

// Validate checks the form: a title, a positive numeric radius and a network
// name are all required.
func Validate(in Input) error {
	if err := validate.Struct(in); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			return fmt.Errorf("invalid region: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid region: %w", err)
	}
	return nil
}

// Valid is Validate reduced to a bool.
func Valid(in Input) bool {
	return Validate(in) == nil
}

// ParseRadius returns the radius of a validated form.
func (in Input) ParseRadius() float64 {
	r, _ := strconv.ParseFloat(strings.TrimSpace(in.Radius), 64)
	return r
}

// Check validates a decoded region list: every region must be usable on its
// own and no region or network id may repeat.
func Check(list []Region) error {
	var problems []string
	seen := make(map[string]bool, 2*len(list))
	for _, r := range list {
		if strings.TrimSpace(r.Title) == "" {
			problems = append(problems, fmt.Sprintf("%s: empty title", r.ID))
		}
		if r.Radius <= 0 {
			problems = append(problems, fmt.Sprintf("%s: radius must be positive", r.ID))
		}
		if r.Coordinates.Latitude < -90 || r.Coordinates.Latitude > 90 ||
			r.Coordinates.Longitude < -180 || r.Coordinates.Longitude > 180 {
			problems = append(problems, fmt.Sprintf("%s: coordinates out of range", r.ID))
		}
		if strings.TrimSpace(r.Network.Name) == "" {
			problems = append(problems, fmt.Sprintf("%s: empty network name", r.ID))
		}
		for _, id := range []string{"region " + r.ID, "network " + r.Network.ID} {
			if seen[id] {
				problems = append(problems, "duplicate "+id)
			}
			seen[id] = true
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid regions: %s", strings.Join(problems, "; "))
	}
	return nil
}
