// Package check provides guard functions for business preconditions.
//
// Every guard returns nil when its condition does not hold, and otherwise a
// *types.AppError with code types.ErrCodeServiceRule whose message is the
// template formatted with Format. Callers return the error immediately:
//
//	if err := check.IfEmpty(userIDs, "消息接收人不能为空"); err != nil {
//		return 0, err
//	}
//
// Guards keep no state and never log.
package check

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"backoffice/internal/types"
)

const (
	existsTemplate    = "{} 为 [{}] 的 {} 记录已存在"
	notExistsTemplate = "{} 为 [{}] 的 {} 记录已不存在"
)

// Entity-name markers removed before an entity name is shown to users.
var entitySuffixes = []string{"DO", "Record"}

// IfNull fails when v is nil or a nil pointer, map, slice, channel, func or interface.
func IfNull(v any, template string, args ...any) error {
	return If(isNull(v), template, args...)
}

// IfNotNull fails when v is present.
func IfNotNull(v any, template string, args ...any) error {
	return If(!isNull(v), template, args...)
}

// IfEmpty fails when v is null or a zero-length string, slice, array, map or
// channel (a pointer to one of these is followed once).
func IfEmpty(v any, template string, args ...any) error {
	return If(isEmpty(v), template, args...)
}

// IfNotEmpty fails when v is not empty.
func IfNotEmpty(v any, template string, args ...any) error {
	return If(!isEmpty(v), template, args...)
}

// IfBlank fails when the text of v is null, empty or only whitespace.
// v is a string, *string, []byte, fmt.Stringer or any string-kinded value.
func IfBlank(v any, template string, args ...any) error {
	return If(isBlank(v), template, args...)
}

// IfNotBlank fails when the text of v contains a non-whitespace character.
func IfNotBlank(v any, template string, args ...any) error {
	return If(!isBlank(v), template, args...)
}

// IfEqual fails when a and b are deeply equal. Two null values are equal.
func IfEqual(a, b any, template string, args ...any) error {
	return If(equal(a, b), template, args...)
}

// IfNotEqual fails when a and b differ.
func IfNotEqual(a, b any, template string, args ...any) error {
	return If(!equal(a, b), template, args...)
}

// IfEqualIgnoreCase fails when the texts of a and b are equal under Unicode
// case folding.
func IfEqualIgnoreCase(a, b any, template string, args ...any) error {
	return If(equalIgnoreCase(a, b), template, args...)
}

// IfNotEqualIgnoreCase fails when the texts of a and b differ under case folding.
func IfNotEqualIgnoreCase(a, b any, template string, args ...any) error {
	return If(!equalIgnoreCase(a, b), template, args...)
}

// If fails when cond is true.
func If(cond bool, template string, args ...any) error {
	if !cond {
		return nil
	}
	return violation(Format(template, args...))
}

// IfFunc evaluates pred and fails when it reports true. A nil pred never fails.
func IfFunc(pred func() bool, template string, args ...any) error {
	if pred == nil {
		return nil
	}
	return If(pred(), template, args...)
}

// IfExists fails with "<field> 为 [<value>] 的 <entity> 记录已存在" when v is present.
func IfExists(v any, entity, field string, value any) error {
	if isNull(v) {
		return nil
	}
	return violation(recordMessage(existsTemplate, entity, field, value))
}

// IfNotExists fails with "<field> 为 [<value>] 的 <entity> 记录已不存在" when v is null.
func IfNotExists(v any, entity, field string, value any) error {
	if !isNull(v) {
		return nil
	}
	return violation(recordMessage(notExistsTemplate, entity, field, value))
}

func violation(message string) error {
	return types.NewAppError(types.ErrCodeServiceRule, message, nil)
}

func recordMessage(template, entity, field string, value any) string {
	return Format(template, field, render(value), entityName(entity))
}

func entityName(entity string) string {
	for _, suffix := range entitySuffixes {
		if len(entity) > len(suffix) && strings.HasSuffix(entity, suffix) {
			return strings.TrimSuffix(entity, suffix)
		}
	}
	return entity
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

func isEmpty(v any) bool {
	if isNull(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len() == 0
	}
	return false
}

func isBlank(v any) bool {
	s, ok := text(v)
	if !ok {
		return true
	}
	return strings.IndexFunc(s, func(r rune) bool { return !isBlankRune(r) }) < 0
}

func equal(a, b any) bool {
	an, bn := isNull(a), isNull(b)
	if an || bn {
		return an && bn
	}
	return reflect.DeepEqual(a, b)
}

func equalIgnoreCase(a, b any) bool {
	sa, oka := text(a)
	sb, okb := text(b)
	if !oka || !okb {
		return !oka && !okb
	}
	return strings.EqualFold(sa, sb)
}

// text returns the textual form of v; ok is false for null values.
func text(v any) (s string, ok bool) {
	if isNull(v) {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case []rune:
		return string(x), true
	case fmt.Stringer:
		return x.String(), true
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return fmt.Sprint(rv.Interface()), true
}

// isBlankRune covers Unicode white space plus the invisible filler characters
// that render as nothing (BOM, LRE, NUL, Hangul filler, Braille blank,
// Mongolian vowel separator).
func isBlankRune(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '\ufeff', '\u202a', '\u0000', '\u3164', '\u2800', '\u180e':
		return true
	}
	return false
}
