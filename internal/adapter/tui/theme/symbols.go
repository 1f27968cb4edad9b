package theme

import (
	"os"
	"strings"
)

// SymbolSet holds all UI symbols, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Cursor       string
	Connected    string
	Disconnected string
	Restart      string
	Memory       string
	Bullet       string
	Ellipsis     string
}

var unicodeSymbols = SymbolSet{
	Cursor:       "█", // █
	Connected:    "●", // ●
	Disconnected: "○", // ○
	Restart:      "↻", // ↻
	Memory:       "▤", // ▤
	Bullet:       "•", // •
	Ellipsis:     "…", // …
}

var asciiSymbols = SymbolSet{
	Cursor:       "_",
	Connected:    "[+]",
	Disconnected: "[-]",
	Restart:      "R",
	Memory:       "M",
	Bullet:       "*",
	Ellipsis:     "...",
}

var (
	SymbolCursor       = unicodeSymbols.Cursor
	SymbolConnected    = unicodeSymbols.Connected
	SymbolDisconnected = unicodeSymbols.Disconnected
	SymbolRestart      = unicodeSymbols.Restart
	SymbolMemory       = unicodeSymbols.Memory
	SymbolBullet       = unicodeSymbols.Bullet
	SymbolEllipsis     = unicodeSymbols.Ellipsis
)

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// THOUGHTSTREAM_ASCII_SYMBOLS=1 forces ASCII.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("THOUGHTSTREAM_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}

	// Most modern terminals support Unicode; default to true.
	return true
}

// InitSymbols sets the package-level Symbol* variables based on terminal
// capabilities. Called by init(); tests may call it again after changing
// the environment.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}

	SymbolCursor = set.Cursor
	SymbolConnected = set.Connected
	SymbolDisconnected = set.Disconnected
	SymbolRestart = set.Restart
	SymbolMemory = set.Memory
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
}

func init() {
	InitSymbols()
}
