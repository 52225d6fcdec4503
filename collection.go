package hal

import "errors"

// Array is an Object known to be a JavaScript array.
type Array struct {
	Object
}

// Len
//
//	@Description: returns the value of the length property
//	@receiver a :
//	@return int64
func (a Array) Len() (int64, error) {
	v, err := a.GetProperty("length")
	if err != nil {
		return 0, err
	}
	defer v.Free()
	n, err := v.ToUint32()
	return int64(n), err
}

// Get
//
//	@Description: get the specific value by subscript
//	@receiver a :
//	@param index :
//	@return Value
func (a Array) Get(index int64) (Value, error) {
	if index < 0 {
		return Value{}, errors.New("the input index value is a negative number")
	}
	n, err := a.Len()
	if err != nil {
		return Value{}, err
	}
	if index >= n {
		return Value{}, errors.New("index subscript out of range")
	}
	return a.GetPropertyAtIndex(uint32(index))
}

// Set
//
//	@Description: set the value at index, growing the array when needed
//	@receiver a :
//	@param index :
//	@param value :
//	@return error
func (a Array) Set(index int64, value Value) error {
	if index < 0 {
		return errors.New("the input index value is a negative number")
	}
	return a.SetPropertyAtIndex(uint32(index), value)
}

// Push
//
//	@Description: add one or more elements after the array, returns the new array length
//	@receiver a :
//	@param elements :
//	@return int64
func (a Array) Push(elements ...Value) (int64, error) {
	push, err := a.GetProperty("push")
	if err != nil {
		return 0, err
	}
	defer push.Free()
	fn, err := push.ToObject()
	if err != nil {
		return 0, err
	}
	defer fn.Free()
	ret, err := fn.CallAsFunction(elements, a.Object)
	if err != nil {
		return 0, err
	}
	defer ret.Free()
	n, err := ret.ToUint32()
	return int64(n), err
}

// Values
//
//	@Description: returns every element in order; the caller frees each one
//	@receiver a :
//	@return []Value
func (a Array) Values() ([]Value, error) {
	n, err := a.Len()
	if err != nil {
		return nil, err
	}
	values := make([]Value, 0, n)
	for i := int64(0); i < n; i++ {
		v, err := a.GetPropertyAtIndex(uint32(i))
		if err != nil {
			for j := range values {
				values[j].Free()
			}
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// ArrayItems returns the host instances behind the elements of a, which must
// all be objects of an exported type T.
func ArrayItems[T any](a Array) ([]T, error) {
	values, err := a.Values()
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range values {
			values[i].Free()
		}
	}()

	items := make([]T, 0, len(values))
	for i, v := range values {
		item, ok := GetPrivate[T](Object{v})
		if !ok {
			return nil, logicalErrorf("", "array element %d has no host instance of the requested type", i)
		}
		items = append(items, item)
	}
	return items, nil
}
