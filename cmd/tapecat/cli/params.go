// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

// FlagBinder is implemented by flag groups that bind their own flags,
// usually because a default comes from the environment. When a struct
// field's type implements FlagBinder, [BindFlags] calls AddFlags
// instead of reflecting struct tags.
type FlagBinder interface {
	AddFlags(flagSet *pflag.FlagSet)
}

// ByteSize is an int64 flag that accepts human sizes: "1500", "10MB",
// "10MiB", "1.5 GB".
type ByteSize int64

var _ pflag.Value = (*ByteSize)(nil)

func (b *ByteSize) String() string {
	if *b == 0 {
		return "0"
	}
	return humanize.IBytes(uint64(*b))
}

func (b *ByteSize) Set(value string) error {
	parsed, err := humanize.ParseBytes(value)
	if err != nil {
		return err
	}
	if parsed > 1<<62 {
		return fmt.Errorf("size %q out of range", value)
	}
	*b = ByteSize(parsed)
	return nil
}

func (b *ByteSize) Type() string { return "size" }

// FlagsFromParams creates a [pflag.FlagSet] with flags bound to the
// tagged fields of params. params must be a pointer to a struct.
// Panics on invalid input (programming error, not runtime data).
//
//	var params searchParams
//	command := &cli.Command{
//	    Params: func() any { return &params },
//	    Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
//	        // params fields are populated after flag parsing
//	    },
//	}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers pflag entries for each tagged field in params.
//
// Three tags control binding: flag:"name" or flag:"name,n" gives the
// long name and optional shorthand, desc:"..." the help text, and
// default:"..." the default parsed for the field's type. Fields without
// a flag tag are skipped.
//
// Supported field types are string, bool, int, int64, [ByteSize],
// [time.Duration] and []string. Embedded structs are bound
// recursively unless they implement [FlagBinder].
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStructFields(value.Elem(), flagSet)
}

func bindStructFields(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()

	for i := range structType.NumField() {
		field := structType.Field(i)
		fieldValue := structValue.Field(i)

		// The field must be exported for reflect to call Interface()
		// on its address.
		if field.Type.Kind() == reflect.Struct && field.IsExported() && fieldValue.CanAddr() {
			if binder, ok := fieldValue.Addr().Interface().(FlagBinder); ok {
				binder.AddFlags(flagSet)
				continue
			}
		}

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStructFields(fieldValue, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}

		tag := field.Tag.Get("flag")
		if tag == "" {
			continue
		}
		name, shorthand, _ := strings.Cut(tag, ",")
		if err := bindField(fieldValue, flagSet, name, shorthand, field.Tag.Get("desc"), field.Tag.Get("default")); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func bindField(fieldValue reflect.Value, flagSet *pflag.FlagSet, name, shorthand, description, defaultString string) error {
	wrap := func(err error) error {
		return fmt.Errorf("default for --%s: %w", name, err)
	}

	switch target := fieldValue.Addr().Interface().(type) {
	case *string:
		flagSet.StringVarP(target, name, shorthand, defaultString, description)

	case *bool:
		value, err := parseDefault(defaultString, strconv.ParseBool)
		if err != nil {
			return wrap(err)
		}
		flagSet.BoolVarP(target, name, shorthand, value, description)

	case *int:
		value, err := parseDefault(defaultString, strconv.Atoi)
		if err != nil {
			return wrap(err)
		}
		flagSet.IntVarP(target, name, shorthand, value, description)

	case *int64:
		value, err := parseDefault(defaultString, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
		if err != nil {
			return wrap(err)
		}
		flagSet.Int64VarP(target, name, shorthand, value, description)

	case *ByteSize:
		*target = 0
		if defaultString != "" {
			if err := target.Set(defaultString); err != nil {
				return wrap(err)
			}
		}
		flagSet.VarP(target, name, shorthand, description)

	case *time.Duration:
		value, err := parseDefault(defaultString, time.ParseDuration)
		if err != nil {
			return wrap(err)
		}
		flagSet.DurationVarP(target, name, shorthand, value, description)

	case *[]string:
		var value []string
		if defaultString != "" {
			value = strings.Split(defaultString, ",")
		}
		flagSet.StringSliceVarP(target, name, shorthand, value, description)

	default:
		return fmt.Errorf("unsupported type %s for flag --%s", fieldValue.Type(), name)
	}
	return nil
}

// parseDefault parses a default tag, treating an empty tag as the
// zero value.
func parseDefault[T any](s string, parse func(string) (T, error)) (T, error) {
	if s == "" {
		var zero T
		return zero, nil
	}
	return parse(s)
}
