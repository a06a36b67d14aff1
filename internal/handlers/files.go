// Package handlers contiene handlers de contexto listos para montar; el
// principal sirve ficheros y directorios desde disco con semántica
// condicional y de rangos completa.
package handlers

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"so-http11-embed/internal/http11"
	"so-http11-embed/internal/util"
)

// FileHandler sirve un contexto mapeándolo (recursivamente) a un directorio
// en disco.
type FileHandler struct {
	base string // ruta canónica del directorio base
}

// NewFileHandler crea un handler que sirve el árbol bajo dir.
func NewFileHandler(dir string) (*FileHandler, error) {
	base, err := canonicalize(dir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(base)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	return &FileHandler{base: base}, nil
}

func (h *FileHandler) Serve(req *http11.Request, resp *http11.Response) (int, error) {
	return ServeFile(h.base, req.Context().Path(), req, resp)
}

// canonicalize devuelve la ruta absoluta con symlinks resueltos.
func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// ServeFile sirve el contenido de un contexto desde un recurso en disco.
// El fichero se localiza quitando el prefijo del contexto a la ruta de la
// petición y resolviéndola bajo el directorio base. Ficheros inexistentes u
// ocultos dan 404; ilegibles o fuera de la base (guardia contra
// path traversal), 403. Un directorio pedido con '/' final se sirve como
// índice HTML si el host lo permite (403 si no); sin '/' final se redirige a
// la URL normalizada con '/' final.
// Devuelve el status a responder por defecto, o 0 si ya se respondió.
func ServeFile(base, context string, req *http11.Request, resp *http11.Response) (int, error) {
	relative := strings.TrimPrefix(req.Path(), context)
	file, err := canonicalize(filepath.Join(base, filepath.FromSlash(relative)))
	if err != nil {
		return 404, nil // inexistente (o irresoluble)
	}
	fi, err := os.Stat(file)
	if err != nil || strings.HasPrefix(filepath.Base(file), ".") {
		return 404, nil
	}
	if file != base && !strings.HasPrefix(file, base+string(filepath.Separator)) {
		return 403, nil // fuera de la base
	}
	f, err := os.Open(file)
	if err != nil {
		return 403, nil // ilegible
	}
	f.Close()
	if fi.IsDir() {
		if strings.HasSuffix(relative, "/") {
			if !req.VirtualHost().AllowGeneratedIndex() {
				return 403, nil
			}
			index, err := CreateIndex(file, req.Path())
			if err != nil {
				return 403, nil
			}
			return 0, resp.Send(200, index)
		}
		// redirige a la URL de directorio normalizada con '/' final
		return 0, resp.Redirect(req.BaseURL().String()+req.Path()+"/", true)
	}
	if strings.HasSuffix(relative, "/") {
		return 404, nil // no-directorio con barra final
	}
	return 0, serveFileContent(file, fi, req, resp)
}

// serveFileContent envía el contenido de un fichero existente con su content
// type, última modificación y ETag, resolviendo condicionales y rangos
// parciales según el RFC.
func serveFileContent(file string, fi os.FileInfo, req *http11.Request, resp *http11.Response) error {
	length := fi.Size()
	lastModified := fi.ModTime().Truncate(time.Second)
	etag := fmt.Sprintf("W/\"%d\"", lastModified.Unix()) // tag débil basado en la fecha
	status := 200
	// rango o condicional
	rng := req.Range(length)
	if rng == nil || length == 0 {
		status = http11.ConditionalStatus(req, lastModified, etag)
	} else {
		ifRange, ok := req.Headers().Lookup("If-Range")
		switch {
		case !ok:
			if rng.Start >= length {
				status = 416 // rango insatisfacible
			} else {
				status = http11.ConditionalStatus(req, lastModified, etag)
			}
		case rng.Start >= length:
			// RFC2616#14.16, #10.4.17: If-Range con rango inválido
			// recibe el recurso completo
			rng = nil
		default: // se envía el rango o todo
			if !strings.HasPrefix(ifRange, "\"") && !strings.HasPrefix(ifRange, "W/") {
				if date, ok := req.Headers().GetDate("If-Range"); ok && lastModified.After(date) {
					rng = nil // modificado: se envía todo
				}
			} else if ifRange != etag {
				rng = nil // modificado: se envía todo
			}
		}
	}
	headers := resp.Headers()
	switch status {
	case 304: // no se permiten más headers ni cuerpo
		headers.Add("ETag", etag)
		headers.Add("Vary", "Accept-Encoding")
		headers.Add("Last-Modified", http11.FormatDate(lastModified))
		return resp.WriteHeader(304)
	case 412:
		return resp.WriteHeader(412)
	case 416:
		headers.Add("Content-Range", fmt.Sprintf("bytes */%d", length))
		return resp.WriteHeader(416)
	case 200:
		if err := resp.SendHeaders(200, length, lastModified, etag,
			http11.ContentTypeFor(file, "application/octet-stream"), rng); err != nil {
			return err
		}
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		return resp.SendBody(f, length, rng)
	default:
		return resp.WriteHeader(500) // inalcanzable
	}
}

// CreateIndex genera el índice HTML de un directorio (formato estilo
// Apache, con enlace al padre y tamaños aproximados). displayPath es la ruta
// base mostrada que corresponde al directorio.
func CreateIndex(dir, displayPath string) (string, error) {
	if !strings.HasSuffix(displayPath, "/") {
		displayPath += "/"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	// ancho de la columna de nombres
	w := 21 // mínimo
	for _, e := range entries {
		if len(e.Name()) > w {
			w = len(e.Name())
		}
	}
	w += 2 // hueco para la barra y el espacio
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n"+
		"<html><head><title>Index of %s</title></head>\n"+
		"<body><h1>Index of %s</h1>\n"+
		"<pre> Name%*s Last modified      Size<hr>",
		displayPath, displayPath, w-5, "")
	if len(displayPath) > 1 { // enlace al padre salvo en la raíz
		parent, _ := util.ParentPath(displayPath)
		fmt.Fprintf(&b, " <a href=\"%s/\">Parent Directory</a>%*s-\n", parent, w+5, "")
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		size := "- "
		if !e.IsDir() {
			size = util.SizeApprox(info.Size())
		}
		// el enlace va correctamente url-encoded
		link := (&url.URL{Path: displayPath + name}).EscapedPath()
		fmt.Fprintf(&b, " <a href=\"%s\">%s</a>%-*s&#8206;%s%6s\n",
			link, name, w-len(name), "", info.ModTime().Format("02-Jan-2006 15:04"), size)
	}
	b.WriteString("</pre></body></html>")
	return b.String(), nil
}
