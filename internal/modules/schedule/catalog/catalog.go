// Package catalog maps the direction keys clients send to the timetable pages
// they are scraped from.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultURLTemplate = "http://www.panynj.gov/path/schedules/%s.html"

type Direction struct {
	Key  string `yaml:"key" validate:"required,excludesall=/?# "`
	Page string `yaml:"page" validate:"required"`
}

type Catalog struct {
	URLTemplate string      `yaml:"url_template" validate:"required,contains=%s"`
	Directions  []Direction `yaml:"directions" validate:"required,min=1,unique=Key,dive"`
}

var ErrUnknownDirection = errors.New("unable to find loc")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default covers the weekday Journal Square to 33rd Street line in both directions.
func Default() Catalog {
	return Catalog{
		URLTemplate: DefaultURLTemplate,
		Directions: []Direction{
			{Key: "jsq_33rd", Page: "JSQ_33rd_Weekday"},
			{Key: "33rd_jsq", Page: "33rd_JSQ_Weekday"},
		},
	}
}

// Load reads a YAML catalog. An empty path yields Default. A file that omits
// url_template inherits DefaultURLTemplate.
func Load(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if c.URLTemplate == "" {
		c.URLTemplate = DefaultURLTemplate
	}
	if err := validate.Struct(c); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// PageURL resolves a direction key to the page it is scraped from.
func (c Catalog) PageURL(direction string) (string, error) {
	for _, d := range c.Directions {
		if d.Key == direction {
			return fmt.Sprintf(c.URLTemplate, d.Page), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
}

func (c Catalog) Keys() []string {
	keys := make([]string, len(c.Directions))
	for i, d := range c.Directions {
		keys[i] = d.Key
	}
	return keys
}
