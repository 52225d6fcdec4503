package hal

import "go.uber.org/zap"

// NativeFunc implements a function created with CreateNativeFunction.
type NativeFunc func(ctx *Context, this Object, args []Value) (Value, error)

// CreateFunction compiles an anonymous function with the given body and
// parameter names.
func (ctx *Context) CreateFunction(body string, params ...string) (Object, error) {
	if err := ctx.check(); err != nil {
		return Object{}, err
	}
	h, err := ctx.engine.MakeFunction("anonymous", params, body)
	if err != nil {
		jsErr := asError(ctx.errorFrom(err))
		ctx.logger.Debug("cannot make anonymous function", zap.Error(jsErr))
		return Object{}, &Error{
			Name:       jsErr.Name,
			Message:    "Unable to make anonymous function: " + jsErr.Message,
			FileName:   jsErr.FileName,
			LineNumber: jsErr.LineNumber,
			Stack:      jsErr.Stack,
			Cause:      jsErr,
		}
	}
	return Object{newValue(ctx, h)}, nil
}

// CreateNativeFunction returns a function that runs fn. Errors returned by
// fn are thrown into script.
func (ctx *Context) CreateNativeFunction(name string, fn NativeFunc) Object {
	h := ctx.engine.MakeNativeFunction(name, func(c *Context, this Handle, args []Handle, exception *Handle) Handle {
		var result Handle
		c.dispatch(name, "error while calling "+name, exception, func() error {
			thisObj := Object{newValue(c, this)}
			defer thisObj.Free()
			values := c.wrap(args)
			defer freeValues(values)

			v, err := fn(c, thisObj, values)
			if err != nil {
				v.Free()
				return err
			}
			result, err = c.release(v)
			return err
		})
		return result
	})
	return Object{newValue(ctx, h)}
}
