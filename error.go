package hal

import (
	"errors"
	"fmt"
)

// Error represents a JavaScript error with detailed information.
type Error struct {
	Name        string   // Error name (e.g., "TypeError", "SyntaxError")
	Message     string   // Error message
	FileName    string   // Source the error was raised in
	LineNumber  int      // Line in FileName
	Stack       string   // JavaScript stack trace
	NativeStack []string // Exported functions dispatching when raised, most recent first
	Cause       error    // Go error this one was made from, if any
}

// NewError returns an *Error with the given name and message.
func NewError(name, message string) *Error {
	return &Error{Name: name, Message: message}
}

// Error implements the error interface.
func (err *Error) Error() string {
	if err.FileName != "" {
		return fmt.Sprintf("%s: %s (%s:%d)", err.Name, err.Message, err.FileName, err.LineNumber)
	}
	return fmt.Sprintf("%s: %s", err.Name, err.Message)
}

func (err *Error) Unwrap() error {
	return err.Cause
}

// LogicalError reports a broken internal invariant, such as dispatching to an
// object that has no private data.
type LogicalError struct {
	Class   string
	Message string
}

func (err *LogicalError) Error() string {
	if err.Class == "" {
		return err.Message
	}
	return fmt.Sprintf("%s: %s", err.Class, err.Message)
}

func logicalErrorf(class, format string, args ...interface{}) *LogicalError {
	return &LogicalError{Class: class, Message: fmt.Sprintf(format, args...)}
}

// nativeErrorNames are the error constructors every engine provides.
var nativeErrorNames = map[string]bool{
	"Error":          true,
	"EvalError":      true,
	"RangeError":     true,
	"ReferenceError": true,
	"SyntaxError":    true,
	"TypeError":      true,
	"URIError":       true,
}

// asError converts any error into an *Error, preferring a structured one in
// the chain over the generic message.
func asError(err error) *Error {
	var jsErr *Error
	if errors.As(err, &jsErr) {
		return jsErr
	}
	return &Error{Name: "Error", Message: err.Error(), Cause: err}
}

// errorHandle builds the engine error object thrown for err. Frames of the
// native stack are attached when err does not carry its own.
func (ctx *Context) errorHandle(err error) Handle {
	jsErr := asError(err)
	nativeStack := jsErr.NativeStack
	if len(nativeStack) == 0 {
		nativeStack = ctx.stack.Frames()
	}

	e := ctx.engine
	name := jsErr.Name
	if name == "" {
		name = "Error"
	}
	message := e.String(jsErr.Message)

	var obj Handle
	if nativeErrorNames[name] {
		if ctor, gerr := e.GetProperty(e.GlobalObject(), name); gerr == nil {
			obj, _ = e.CallAsConstructor(ctor, []Handle{message})
		}
	}
	if obj == nil {
		var merr error
		if obj, merr = e.MakeError([]Handle{message}); merr != nil {
			return message
		}
	}

	_ = e.SetProperty(obj, "name", e.String(name), PropertyNone)
	if jsErr.FileName != "" {
		_ = e.SetProperty(obj, "fileName", e.String(jsErr.FileName), PropertyNone)
	}
	if jsErr.LineNumber > 0 {
		_ = e.SetProperty(obj, "lineNumber", e.Number(float64(jsErr.LineNumber)), PropertyNone)
	}
	if jsErr.Stack != "" {
		_ = e.SetProperty(obj, "stack", e.String(jsErr.Stack), PropertyNone)
	}
	_ = e.SetProperty(obj, "nativeStack", e.String(formatNativeStack(nativeStack)), PropertyNone)
	return obj
}

// errorFrom turns an engine exception into an *Error. Other errors are
// returned unchanged.
func (ctx *Context) errorFrom(err error) error {
	var x *exception
	if !errors.As(err, &x) {
		return err
	}
	jsErr := &Error{
		Name:       "Error",
		Message:    x.message,
		FileName:   x.fileName,
		LineNumber: x.lineNumber,
		Stack:      x.stack,
	}
	e := ctx.engine
	if x.value == nil || e.TypeOf(x.value) != TypeObject {
		if x.value != nil {
			if s, serr := e.ToString(x.value); serr == nil {
				jsErr.Message = s
			}
		}
		return jsErr
	}

	str := func(name string) (string, bool) {
		if ok, _ := e.HasProperty(x.value, name); !ok {
			return "", false
		}
		v, gerr := e.GetProperty(x.value, name)
		if gerr != nil || e.TypeOf(v) == TypeUndefined {
			return "", false
		}
		s, serr := e.ToString(v)
		return s, serr == nil
	}
	if s, ok := str("name"); ok {
		jsErr.Name = s
	}
	if s, ok := str("message"); ok {
		jsErr.Message = s
	}
	if s, ok := str("fileName"); ok {
		jsErr.FileName = s
	}
	if v, gerr := e.GetProperty(x.value, "lineNumber"); gerr == nil && e.TypeOf(v) == TypeNumber {
		if n, nerr := e.ToNumber(v); nerr == nil {
			jsErr.LineNumber = int(n)
		}
	}
	if s, ok := str("stack"); ok {
		jsErr.Stack = s
	}
	if s, ok := str("nativeStack"); ok {
		jsErr.NativeStack = parseNativeStack(s)
	}
	return jsErr
}

// ErrorObject is an Object known to be a JavaScript error.
type ErrorObject struct {
	Object
}

func (e ErrorObject) stringProperty(name string) string {
	if !e.HasProperty(name) {
		return ""
	}
	v, err := e.GetProperty(name)
	if err != nil {
		return ""
	}
	defer v.Free()
	return v.String()
}

// Name returns the error's name property.
func (e ErrorObject) Name() string { return e.stringProperty("name") }

// Message returns the error's message property.
func (e ErrorObject) Message() string { return e.stringProperty("message") }

// FileName returns the error's fileName property.
func (e ErrorObject) FileName() string { return e.stringProperty("fileName") }

// Stack returns the error's stack property.
func (e ErrorObject) Stack() string { return e.stringProperty("stack") }

// NativeStack returns the native frames recorded when the error was raised.
func (e ErrorObject) NativeStack() []string {
	return parseNativeStack(e.stringProperty("nativeStack"))
}

// LineNumber returns the error's lineNumber property.
func (e ErrorObject) LineNumber() int {
	if !e.HasProperty("lineNumber") {
		return 0
	}
	v, err := e.GetProperty("lineNumber")
	if err != nil {
		return 0
	}
	defer v.Free()
	n, err := v.ToNumber()
	if err != nil {
		return 0
	}
	return int(n)
}

// ToError converts the error object into an *Error.
func (e ErrorObject) ToError() *Error {
	return &Error{
		Name:        e.Name(),
		Message:     e.Message(),
		FileName:    e.FileName(),
		LineNumber:  e.LineNumber(),
		Stack:       e.Stack(),
		NativeStack: e.NativeStack(),
	}
}

// ErrorFromValue returns v as an ErrorObject when it is an instance of Error.
func ErrorFromValue(v Value) (ErrorObject, bool) {
	if !v.IsError() {
		return ErrorObject{}, false
	}
	return ErrorObject{Object{v.Clone()}}, true
}
