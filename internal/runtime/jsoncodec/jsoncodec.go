package jsoncodec

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
)

var defaultConfig = sonic.ConfigStd

// ErrNotObject is returned by UnmarshalObject when the document is valid JSON
// but its top-level value is not an object.
var ErrNotObject = errors.New("json document is not an object")

// ErrDuplicateKey is returned by UnmarshalObject when a top-level member name
// appears more than once.
var ErrDuplicateKey = errors.New("duplicate object member")

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// UnmarshalObject decodes a top-level JSON object into a map keyed by the exact
// member names found in the document. Callers that need case-sensitive field
// matching use this instead of struct decoding, which folds case. A repeated
// top-level member fails with ErrDuplicateKey.
func UnmarshalObject(data []byte) (map[string]any, error) {
	var value any
	if err := defaultConfig.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	object, ok := value.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	if err := checkDuplicateKeys(data, len(object)); err != nil {
		return nil, err
	}
	return object, nil
}

// checkDuplicateKeys walks the top-level members in document order. The map
// decode above keeps only the last of any repeated member.
func checkDuplicateKeys(data []byte, unique int) error {
	root, err := sonic.Get(data)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, unique)
	var (
		duplicate string
		found     bool
	)
	err = root.ForEach(func(path ast.Sequence, _ *ast.Node) bool {
		if path.Key == nil {
			return true
		}
		if _, ok := seen[*path.Key]; ok {
			duplicate, found = *path.Key, true
			return false
		}
		seen[*path.Key] = struct{}{}
		return true
	})
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w %q", ErrDuplicateKey, duplicate)
	}
	return nil
}
