/*
Package hal exports Go types to JavaScript as native-backed classes with
value, constant and function properties, property traps, constructors and
finalizers, and gives Go code reference-counted handles to JavaScript values
running in goja.
*/
package hal
