package signature

import "strings"

// PrefixLen is how many leading bytes of a file the magic-number check
// looks at. Fetches never need to read more than this.
const PrefixLen = 16

// Table holds the global dangerous-extension sets and the magic byte
// prefixes used to identify executable content regardless of filename.
// It is built once at process start and never mutated afterwards.
type Table struct {
	extensions       map[string]struct{}
	strictExtensions map[string]struct{}
	magic            [][]byte
}

var defaultExtensions = []string{
	"exe", "com", "bat", "cmd", "scr", "pif", "msi", "msp", "mst",
	"vbs", "vbe", "js", "jse", "wsf", "wsh", "ps1", "psm1", "hta",
	"cpl", "jar", "reg", "lnk", "dll", "sys", "drv", "apk", "app",
	"deb", "rpm", "run", "bin", "sh", "bash", "elf", "dmg", "pkg",
}

var defaultStrictExtensions = []string{
	"zip", "rar", "7z", "tar", "gz", "bz2", "xz", "iso", "img",
	"docm", "xlsm", "pptm", "py", "pl", "rb", "php",
}

// Magic prefixes, checked in order against the first bytes of a file.
var defaultMagic = [][]byte{
	{0x7F, 'E', 'L', 'F'},                  // ELF
	{'M', 'Z'},                             // PE / DOS
	{0xFE, 0xED, 0xFA, 0xCE},               // Mach-O 32-bit
	{0xFE, 0xED, 0xFA, 0xCF},               // Mach-O 64-bit
	{0xCE, 0xFA, 0xED, 0xFE},               // Mach-O 32-bit, swapped
	{0xCF, 0xFA, 0xED, 0xFE},               // Mach-O 64-bit, swapped
	{0xCA, 0xFE, 0xBA, 0xBE},               // Mach-O fat / Java class
	{'#', '!'},                             // script shebang
	{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1},   // MS CFB (legacy Office macros)
}

// NewTable builds the default table shipped with the engine.
func NewTable() *Table {
	return NewTableWith(defaultExtensions, defaultStrictExtensions, defaultMagic)
}

// NewTableWith builds a table from explicit inputs. Extensions are
// normalized to lower case with any leading dot stripped.
func NewTableWith(extensions, strictExtensions []string, magic [][]byte) *Table {
	t := &Table{
		extensions:       make(map[string]struct{}, len(extensions)),
		strictExtensions: make(map[string]struct{}, len(strictExtensions)),
		magic:            make([][]byte, 0, len(magic)),
	}
	for _, ext := range extensions {
		t.extensions[normalizeExt(ext)] = struct{}{}
	}
	for _, ext := range strictExtensions {
		t.strictExtensions[normalizeExt(ext)] = struct{}{}
	}
	for _, sig := range magic {
		if len(sig) > 0 && len(sig) <= PrefixLen {
			t.magic = append(t.magic, sig)
		}
	}
	return t
}

// DangerousExtension reports whether ext (any casing, with or without a
// leading dot) is in the global set, the guild's custom set, or, when
// strict is set, the strict set.
func (t *Table) DangerousExtension(ext string, custom map[string]struct{}, strict bool) bool {
	ext = normalizeExt(ext)
	if ext == "" {
		return false
	}
	if _, ok := t.extensions[ext]; ok {
		return true
	}
	if _, ok := custom[ext]; ok {
		return true
	}
	if strict {
		if _, ok := t.strictExtensions[ext]; ok {
			return true
		}
	}
	return false
}

// MatchesMagic reports whether prefix starts with any known signature.
func (t *Table) MatchesMagic(prefix []byte) bool {
	for _, sig := range t.magic {
		if len(prefix) < len(sig) {
			continue
		}
		if string(prefix[:len(sig)]) == string(sig) {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
