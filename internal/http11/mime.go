package http11

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"so-http11-embed/internal/util"
)

// contentTypes asocia sufijos de ruta (extensiones) a su MIME type. Puede
// actualizarse en caliente: es efectivamente append-only y concurrente.
var contentTypes sync.Map

func init() {
	// tipos comunes por defecto; lista completa en
	// http://www.iana.org/assignments/media-types/
	AddContentType("application/font-woff", "woff")
	AddContentType("application/font-woff2", "woff2")
	AddContentType("application/java-archive", "jar")
	AddContentType("application/javascript", "js")
	AddContentType("application/json", "json")
	AddContentType("application/octet-stream", "exe")
	AddContentType("application/pdf", "pdf")
	AddContentType("application/x-7z-compressed", "7z")
	AddContentType("application/x-compressed", "tgz")
	AddContentType("application/x-gzip", "gz")
	AddContentType("application/x-tar", "tar")
	AddContentType("application/xhtml+xml", "xhtml")
	AddContentType("application/zip", "zip")
	AddContentType("audio/mpeg", "mp3")
	AddContentType("image/gif", "gif")
	AddContentType("image/jpeg", "jpg", "jpeg")
	AddContentType("image/png", "png")
	AddContentType("image/svg+xml", "svg")
	AddContentType("image/x-icon", "ico")
	AddContentType("text/css", "css")
	AddContentType("text/csv", "csv")
	AddContentType("text/html; charset=utf-8", "htm", "html")
	AddContentType("text/plain", "txt", "text", "log")
	AddContentType("text/xml", "xml")
}

// AddContentType asocia un MIME type a los sufijos de ruta dados (sin el
// '.'), sustituyendo asociaciones previas. Sufijos case-insensitive; el tipo
// se guarda en minúsculas.
func AddContentType(contentType string, suffixes ...string) {
	for _, suffix := range suffixes {
		contentTypes.Store(strings.ToLower(suffix), strings.ToLower(contentType))
	}
}

// AddContentTypes añade asociaciones desde un fichero estilo mime.types:
// líneas "tipo ext1 ext2 ...", comentarios con '#'.
func AddContentTypes(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		tokens := util.Split(line, " \t", -1)
		for i := 1; i < len(tokens); i++ {
			AddContentType(tokens[0], tokens[i])
		}
	}
	return scanner.Err()
}

// ContentTypeFor devuelve el MIME type de una ruta según su sufijo, o def si
// no se puede determinar.
func ContentTypeFor(path, def string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return def
	}
	if t, ok := contentTypes.Load(strings.ToLower(path[dot+1:])); ok {
		return t.(string)
	}
	return def
}

// compressibleTypes son los patrones de MIME type que merece la pena
// comprimir; se admiten comodines de prefijo y sufijo.
var compressibleTypes = []string{"text/*", "*/javascript", "*icon", "*+xml", "*/json"}

// IsCompressible indica si los datos de un content type son comprimibles.
func IsCompressible(contentType string) bool {
	ct := contentType
	if pos := strings.IndexByte(ct, ';'); pos >= 0 { // sin parámetros
		ct = ct[:pos]
	}
	ct = strings.TrimSpace(ct)
	for _, pat := range compressibleTypes {
		if pat == ct ||
			pat[0] == '*' && strings.HasSuffix(ct, pat[1:]) ||
			pat[len(pat)-1] == '*' && strings.HasPrefix(ct, pat[:len(pat)-1]) {
			return true
		}
	}
	return false
}
