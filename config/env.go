package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/golobby/cast"
)

// ErrInvalidStructure indicates the override target is not a pointer to
// a struct.
var ErrInvalidStructure = errors.New("env overrides require a struct pointer")

// applyEnv overrides tagged struct fields from environment variables.
// Fields carry an `env` tag naming the variable (without the prefix);
// nested structs are walked. Values convert to the field's type via
// golobby/cast, so MODLIFE_CATALOG_TTL=30s lands in a time.Duration.
func applyEnv(target interface{}, prefix string) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidStructure
	}
	return applyEnvFields(rv.Elem(), strings.ToUpper(prefix))
}

func applyEnvFields(rv reflect.Value, prefix string) error {
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rv.Type().Field(i)

		if field.Kind() == reflect.Struct && fieldType.Tag.Get("env") == "" {
			if err := applyEnvFields(field, prefix); err != nil {
				return err
			}
			continue
		}

		envTag, ok := fieldType.Tag.Lookup("env")
		if !ok {
			continue
		}
		envName := prefix + "_" + strings.ToUpper(envTag)
		envValue, set := os.LookupEnv(envName)
		if !set || envValue == "" {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("applying %s to field %s: %w", envName, fieldType.Name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	converted, err := cast.FromType(value, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert %q to %v: %w", value, field.Type(), err)
	}
	if !field.CanSet() {
		return errors.New("field cannot be set")
	}
	field.Set(reflect.ValueOf(converted))
	return nil
}
