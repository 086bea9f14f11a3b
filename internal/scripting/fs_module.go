package scripting

import (
	"io"
	"sync"

	"github.com/d5/tengo/v2"

	"github.com/ocagi/codequest/internal/vfs"
)

// fsModule is the VFS-backed "fs" builtin module: spec §4.2(e)'s "A
// VFS-backed open when the host engine chose to provide one". It is only
// bound into a Scope when NewScope is given a non-nil *vfs.FS; lessons that
// don't need file I/O never see it in their import table at all, which is
// itself part of the capability whitelist (spec §4.2(b): unlisted names
// simply aren't there to import).
//
// Handles are kept in a table local to this module instance -- one per
// Scope, discarded with it -- and referenced from script code by a small
// integer, since tengo objects can't carry an opaque Go pointer directly.
func fsModule(store *vfs.FS) map[string]tengo.Object {
	var mu sync.Mutex
	handles := make(map[int]*vfs.Handle)
	nextID := 1

	modeOf := func(name string) (vfs.Mode, bool) {
		switch name {
		case "r":
			return vfs.ModeRead, true
		case "w":
			return vfs.ModeWrite, true
		case "a":
			return vfs.ModeAppend, true
		default:
			return 0, false
		}
	}

	return map[string]tengo.Object{
		"open": &tengo.UserFunction{
			Name: "open",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 2 {
					return nil, tengo.ErrWrongNumArguments
				}
				path, ok := tengo.ToString(args[0])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "path", Expected: "string"}
				}
				modeName, ok := tengo.ToString(args[1])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "mode", Expected: "string"}
				}
				mode, ok := modeOf(modeName)
				if !ok {
					return wrapError("open: mode must be one of \"r\", \"w\", \"a\""), nil
				}
				h, err := store.Open(path, mode, false)
				if err != nil {
					return wrapError(err.Error()), nil
				}
				mu.Lock()
				id := nextID
				nextID++
				handles[id] = h
				mu.Unlock()
				return &tengo.Int{Value: int64(id)}, nil
			},
		},
		"read_line": &tengo.UserFunction{
			Name: "read_line",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				h, err := handleArg(&mu, handles, args)
				if err != nil {
					return wrapError(err.Error()), nil
				}
				line, err := h.ReadLine()
				if err == io.EOF {
					return tengo.UndefinedValue, nil
				}
				if err != nil {
					return wrapError(err.Error()), nil
				}
				return &tengo.String{Value: line}, nil
			},
		},
		"read": &tengo.UserFunction{
			Name: "read",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				h, err := handleArg(&mu, handles, args)
				if err != nil {
					return wrapError(err.Error()), nil
				}
				data, err := io.ReadAll(h)
				if err != nil {
					return wrapError(err.Error()), nil
				}
				return &tengo.String{Value: string(data)}, nil
			},
		},
		"read_lines": &tengo.UserFunction{
			Name: "read_lines",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				h, err := handleArg(&mu, handles, args)
				if err != nil {
					return wrapError(err.Error()), nil
				}
				lines, err := h.ReadLines()
				if err != nil {
					return wrapError(err.Error()), nil
				}
				arr := &tengo.Array{Value: make([]tengo.Object, len(lines))}
				for i, line := range lines {
					arr.Value[i] = &tengo.String{Value: line}
				}
				return arr, nil
			},
		},
		"write": &tengo.UserFunction{
			Name: "write",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 2 {
					return nil, tengo.ErrWrongNumArguments
				}
				h, err := handleArg(&mu, handles, args[:1])
				if err != nil {
					return wrapError(err.Error()), nil
				}
				data, ok := tengo.ToString(args[1])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "data", Expected: "string"}
				}
				n, err := h.Write([]byte(data))
				if err != nil {
					return wrapError(err.Error()), nil
				}
				return &tengo.Int{Value: int64(n)}, nil
			},
		},
		"close": &tengo.UserFunction{
			Name: "close",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				h, err := handleArg(&mu, handles, args)
				if err != nil {
					return wrapError(err.Error()), nil
				}
				if err := h.Close(); err != nil {
					return wrapError(err.Error()), nil
				}
				return tengo.UndefinedValue, nil
			},
		},
		"exists": &tengo.UserFunction{
			Name: "exists",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 1 {
					return nil, tengo.ErrWrongNumArguments
				}
				path, ok := tengo.ToString(args[0])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "path", Expected: "string"}
				}
				return tengo.FromInterface(store.Exists(path))
			},
		},
		"remove": &tengo.UserFunction{
			Name: "remove",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 1 {
					return nil, tengo.ErrWrongNumArguments
				}
				path, ok := tengo.ToString(args[0])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "path", Expected: "string"}
				}
				if err := store.Remove(path); err != nil {
					return wrapError(err.Error()), nil
				}
				return tengo.UndefinedValue, nil
			},
		},
	}
}

func handleArg(mu *sync.Mutex, handles map[int]*vfs.Handle, args []tengo.Object) (*vfs.Handle, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	id, ok := tengo.ToInt(args[0])
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "handle", Expected: "int"}
	}
	mu.Lock()
	defer mu.Unlock()
	h, ok := handles[id]
	if !ok {
		return nil, vfs.ErrInvalidParam
	}
	return h, nil
}

// wrapError turns a Go error message into the tengo convention of returning
// an Error object rather than raising, so user scripts can inspect it with
// `is_error(...)` the way tengo's own stdlib functions report failures.
func wrapError(msg string) tengo.Object {
	return &tengo.Error{Value: &tengo.String{Value: msg}}
}
