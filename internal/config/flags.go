package config

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

var (
	flagsPath string
	flagMapMu sync.RWMutex
	allFlags  map[string]any = make(map[string]any)
)

type configFlag interface {
	valueCopy() any
	sneakUpdate(newVal any) error
}

type Flag[T any] interface {
	Value() T
	Update(T)
	InternalName() string
	HumanName() string
}

type flag[T any] struct {
	mu        sync.RWMutex
	name      string
	val       T
	humanName string
}

func (f *flag[T]) Value() T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.val
}

func (f *flag[T]) InternalName() string {
	return f.name
}

func (f *flag[T]) HumanName() string {
	return f.humanName
}

func (f *flag[T]) MarshalJSON() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return json.Marshal(&struct {
		InternalName string `json:"internal_name"`
		HumanName    string `json:"human_name"`
		Value        T      `json:"value"`
	}{
		InternalName: f.name,
		HumanName:    f.humanName,
		Value:        f.val,
	})
}

func (f *flag[T]) Update(newVal T) {
	defer func() {
		if err := SaveFlags(context.Background()); err != nil {
			slog.WarnContext(context.Background(), "Couldn't save flag", slog.Any("err", err))
		}
	}()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.val = newVal
}

func (f *flag[T]) valueCopy() any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.val
}

// sneakUpdate sets the value without persisting it back to the flags file.
func (f *flag[T]) sneakUpdate(newVal any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch v := newVal.(type) {
	case json.RawMessage:
		if err := json.Unmarshal(v, &f.val); err != nil {
			return fmt.Errorf("flag %s expects a %T value", f.name, f.val)
		}
		return nil
	default:
		return fmt.Errorf("expected json.RawMessage, got %T", newVal)
	}
}

func GenFlag[T any](name string, defaultVal T, readableName string) Flag[T] {
	flagMapMu.Lock()
	defer flagMapMu.Unlock()
	f := &flag[T]{name: name, val: defaultVal, humanName: readableName}
	allFlags[name] = f
	return f
}

func GetFlag[T any](name string) (Flag[T], bool) {
	flagMapMu.RLock()
	defer flagMapMu.RUnlock()
	flg, ok := allFlags[name]
	if !ok {
		return nil, false
	}
	v, ok := flg.(*flag[T])
	return v, ok
}

func GetFlags[T any]() []Flag[T] {
	flagMapMu.RLock()
	defer flagMapMu.RUnlock()
	var flags []Flag[T]
	for _, flg := range allFlags {
		flag, ok := flg.(*flag[T])
		if ok {
			flags = append(flags, flag)
		}
	}
	slices.SortFunc(flags, func(a, b Flag[T]) int {
		return cmp.Compare(a.InternalName(), b.InternalName())
	})
	return flags
}

func LoadFlags(ctx context.Context, warnUnknown bool) error {
	flagMapMu.RLock()
	defer flagMapMu.RUnlock()
	if flagsPath == "" {
		return errors.New("invalid flags path")
	}
	f, err := os.OpenFile(flagsPath, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	var data = make(map[string]json.RawMessage)
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	for key, confVal := range data {
		val, ok := allFlags[key]
		if !ok {
			if warnUnknown {
				slog.WarnContext(ctx, "Unknown flag in flags file", slog.String("key", key))
			}
			continue
		}
		if v, ok := val.(configFlag); ok {
			if err := v.sneakUpdate(confVal); err != nil {
				slog.WarnContext(ctx, "Couldn't update flag", slog.String("key", key), slog.Any("err", err))
			}
		} else {
			slog.WarnContext(ctx, "Registered flag has unknown type", slog.String("key", key))
		}
	}

	// Environment overrides apply in memory only, they never land in the flags file.
	overrides := strings.Split(os.Getenv("PKD_FLAG_OVERRIDES"), ",")
	for _, override := range overrides {
		if override == "" {
			continue
		}
		key, val, found := strings.Cut(override, "=")
		if !found {
			slog.WarnContext(ctx, "Invalid override", slog.String("override", override))
			continue
		}
		flg, ok := allFlags[key]
		if !ok {
			slog.WarnContext(ctx, "Could not find flag", slog.String("name", key))
			continue
		}
		cf, ok := flg.(configFlag)
		if !ok {
			slog.WarnContext(ctx, "Registered flag has unknown type", slog.String("key", key))
			continue
		}
		if _, isString := flg.(*flag[string]); isString && !strings.HasPrefix(val, `"`) {
			// Values coming from the environment are not quoted
			val = strconv.Quote(val)
		}
		if err := cf.sneakUpdate(json.RawMessage(val)); err != nil {
			slog.WarnContext(ctx, "Invalid flag override", slog.Any("err", err), slog.String("key", key))
		}
	}

	return nil
}

func SaveFlags(ctx context.Context) error {
	if flagsPath == "" {
		return errors.New("invalid flags path")
	}
	if err := os.MkdirAll(filepath.Dir(flagsPath), 0755); err != nil {
		return err
	}
	flagMapMu.RLock()
	defer flagMapMu.RUnlock()

	file, err := os.Create(flagsPath)
	if err != nil {
		return err
	}

	var data = make(map[string]any)
	for key, flg := range allFlags {
		if v, ok := flg.(configFlag); ok {
			data[key] = v.valueCopy()
		}
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "\t")
	if err := enc.Encode(data); err != nil {
		file.Close() // The JSON is already broken, the close error doesn't matter
		return err
	}

	return file.Close()
}

func SetFlagsPath(path string) {
	flagsPath = path
}
