// Package vehicle holds the domain record carried by insert requests and its
// strict JSON parser.
package vehicle

import (
	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/vehicleflow/internal/runtime/jsoncodec"
)

// Field names as they appear on the wire. Matching is case-sensitive.
const (
	FieldMake      = "make"
	FieldModel     = "model"
	FieldModelYear = "modelYear"
	FieldVIN       = "vin"
	FieldDLN       = "dln"

	// LegacyFieldModelYear is still accepted in place of modelYear for
	// producers that emit snake_case.
	LegacyFieldModelYear = "model_year"
)

// Vehicle is the record persisted for every valid insert request. All fields
// are required.
type Vehicle struct {
	Make      string `json:"make"`
	Model     string `json:"model"`
	ModelYear string `json:"modelYear"`
	VIN       string `json:"vin"`
	DLN       string `json:"dln"`
}

type field struct {
	name   string
	alias  string
	target func(*Vehicle) *string
}

var fields = []field{
	{name: FieldMake, target: func(v *Vehicle) *string { return &v.Make }},
	{name: FieldModel, target: func(v *Vehicle) *string { return &v.Model }},
	{name: FieldModelYear, alias: LegacyFieldModelYear, target: func(v *Vehicle) *string { return &v.ModelYear }},
	{name: FieldVIN, target: func(v *Vehicle) *string { return &v.VIN }},
	{name: FieldDLN, target: func(v *Vehicle) *string { return &v.DLN }},
}

// Parse decodes a vehicle from JSON text. Unknown members are ignored. A
// missing, mistyped, miscased or repeated member fails the whole record with
// an ErrParse error.
func Parse(text string) (Vehicle, error) {
	object, err := jsoncodec.UnmarshalObject([]byte(text))
	if err != nil {
		return Vehicle{}, errspkg.New(errspkg.ErrParse, "parse vehicle", err)
	}

	var v Vehicle
	for _, f := range fields {
		raw, name, err := lookup(object, f)
		if err != nil {
			return Vehicle{}, err
		}
		s, ok := raw.(string)
		if !ok {
			return Vehicle{}, errspkg.Newf(errspkg.ErrParse, "parse vehicle", "field %q must be a string", name)
		}
		*f.target(&v) = s
	}
	return v, nil
}

func lookup(object map[string]any, f field) (any, string, error) {
	raw, ok := object[f.name]
	if f.alias == "" {
		if !ok {
			return nil, "", errspkg.Newf(errspkg.ErrParse, "parse vehicle", "missing field %q", f.name)
		}
		return raw, f.name, nil
	}

	aliased, aliasOK := object[f.alias]
	switch {
	case ok && aliasOK:
		return nil, "", errspkg.Newf(errspkg.ErrParse, "parse vehicle", "duplicate field %q (also given as %q)", f.name, f.alias)
	case ok:
		return raw, f.name, nil
	case aliasOK:
		return aliased, f.alias, nil
	}
	return nil, "", errspkg.Newf(errspkg.ErrParse, "parse vehicle", "missing field %q", f.name)
}

// Marshal renders the vehicle with the canonical camelCase field names.
func (v Vehicle) Marshal() ([]byte, error) {
	return jsoncodec.Marshal(v)
}
