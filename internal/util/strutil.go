package util

import (
	"fmt"
	"strconv"
	"strings"
)

// Split trocea s en sus elementos no vacíos y recortados, delimitados por
// cualquiera de los caracteres de delims. Si limit es positivo acota el
// número de elementos (el resto de s queda en el último).
// Es el reemplazo directo de un regex-split: más barato y sin elementos vacíos.
func Split(s, delims string, limit int) []string {
	if s == "" {
		return nil
	}
	var elems []string
	n := len(s)
	start := 0
	for start < n {
		end := start
		limit--
		if limit == 0 {
			end = n
		}
		for end < n && !strings.ContainsRune(delims, rune(s[end])) {
			end++
		}
		if e := strings.TrimSpace(s[start:end]); e != "" {
			elems = append(elems, e)
		}
		start = end + 1
	}
	return elems
}

// SplitElements separa una lista de elementos de header (valores separados
// por comas, RFC2616#2.1: LWS opcional y elementos vacíos ignorados).
// Con lower=true los elementos se devuelven en minúsculas.
func SplitElements(list string, lower bool) []string {
	if lower {
		list = strings.ToLower(list)
	}
	return Split(list, ",", -1)
}

// TrimLeft elimina del inicio de s toda ocurrencia consecutiva de c.
func TrimLeft(s string, c byte) string {
	start := 0
	for start < len(s) && s[start] == c {
		start++
	}
	return s[start:]
}

// TrimRight elimina del final de s toda ocurrencia consecutiva de c.
func TrimRight(s string, c byte) string {
	end := len(s)
	for end > 0 && s[end-1] == c {
		end--
	}
	return s[:end]
}

// TrimDuplicates colapsa ocurrencias consecutivas de c en una sola:
// TrimDuplicates("/a//b///c", '/') == "/a/b/c".
func TrimDuplicates(s string, c byte) string {
	var b strings.Builder
	prev := false
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteByte(s[i])
	}
	if b.Len() == len(s) {
		return s
	}
	return b.String()
}

// ParentPath devuelve el padre de una ruta que empieza por '/' (sin barra
// final), o "" y false si la ruta es la raíz.
func ParentPath(path string) (string, bool) {
	path = TrimRight(path, '/')
	slash := strings.LastIndexByte(path, '/')
	if slash < 0 {
		return "", false
	}
	return path[:slash], true
}

// ParseULong interpreta s como entero sin signo en la base dada.
// A diferencia de strconv.ParseInt, un '+' o '-' inicial invalida la cadena.
func ParseULong(s string, base int) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	if s[0] == '-' || s[0] == '+' {
		return 0, fmt.Errorf("invalid digit: %q", s[0])
	}
	v, err := strconv.ParseUint(s, base, 63)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// EscapeHTML escapa &, <, >, comillas simples y dobles para incrustar s en
// una página HTML (válido también para atributos).
func EscapeHTML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		">", "&gt;",
		"<", "&lt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return r.Replace(s)
}

// SizeApprox devuelve una aproximación legible de un tamaño en bytes,
// p. ej. "316 " (un espacio en lugar de unidad), "1.8K", "324M".
func SizeApprox(size int64) string {
	units := []byte{' ', 'K', 'M', 'G', 'T', 'P', 'E'}
	u := 0
	s := float64(size)
	for s >= 1000 {
		u++
		s /= 1024
	}
	if s < 10 && u > 0 {
		return fmt.Sprintf("%.1f%c", s, units[u])
	}
	return fmt.Sprintf("%.0f%c", s, units[u])
}
