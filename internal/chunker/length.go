package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// RuneCount - длина в символах (рунах)
func RuneCount(s string) int {
	return utf8.RuneCountInString(s)
}

// ByteCount - длина в байтах
func ByteCount(s string) int {
	return len(s)
}

// NewTokenCounter возвращает LengthFunc, считающую токены tiktoken.
// encoding может быть именем кодировки или модели; пустая строка - cl100k_base.
func NewTokenCounter(encoding string) (LengthFunc, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}

	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		tke, err = tiktoken.EncodingForModel(encoding)
		if err != nil {
			return nil, fmt.Errorf("unknown token encoding %q: %w", encoding, err)
		}
	}

	return func(s string) int {
		return len(tke.Encode(s, nil, nil))
	}, nil
}

// LengthFuncByName выбирает функцию длины по имени из конфига: runes, bytes, tokens
func LengthFuncByName(name, encoding string) (LengthFunc, error) {
	switch name {
	case "", "runes", "chars":
		return RuneCount, nil
	case "bytes":
		return ByteCount, nil
	case "tokens":
		return NewTokenCounter(encoding)
	default:
		return nil, fmt.Errorf("unknown length function: %s", name)
	}
}
