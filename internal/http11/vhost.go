package http11

import (
	"fmt"

	"so-http11-embed/internal/util"
)

// Handler atiende las peticiones de un contexto.
//
// El entero devuelto es un status HTTP con el que el motor generará una
// respuesta de error por defecto; un handler que ya escribió algo (headers o
// cuerpo) debe devolver 0. Un error devuelto aborta la transacción (500 si
// aún no se enviaron headers).
type Handler interface {
	Serve(req *Request, resp *Response) (int, error)
}

// HandlerFunc adapta una función a Handler.
type HandlerFunc func(*Request, *Response) (int, error)

func (f HandlerFunc) Serve(req *Request, resp *Response) (int, error) { return f(req, resp) }

// Route describe una entrada de registro declarativo: ruta, métodos (GET si
// se omiten) y handler.
type Route struct {
	Path    string
	Methods []string
	Handler HandlerFunc
}

// ContextInfo es un contexto registrado: una ruta base y su tabla
// método → handler.
type ContextInfo struct {
	path     string
	handlers map[string]Handler
}

// Path devuelve la ruta del contexto, normalizada sin barra final (la raíz
// es la cadena vacía).
func (c *ContextInfo) Path() string { return c.path }

// Handlers devuelve la tabla método → handler del contexto.
func (c *ContextInfo) Handlers() map[string]Handler { return c.handlers }

// VirtualHost es una partición de contextos bajo un servidor, seleccionada
// por el nombre de host efectivo de la petición. Toda la configuración debe
// completarse antes de arrancar el servidor; después es de solo lectura.
type VirtualHost struct {
	name                string // "" para el host por defecto
	aliases             []string
	directoryIndex      string
	allowGeneratedIndex bool
	contexts            map[string]*ContextInfo
	methods             map[string]bool // todos los métodos del host
	emptyContext        *ContextInfo    // devuelto cuando no hay contexto (404)
}

// NewVirtualHost crea un virtual host con el nombre dado ("" para el host
// por defecto). El índice de directorio arranca en "index.html".
func NewVirtualHost(name string) *VirtualHost {
	return &VirtualHost{
		name:           name,
		directoryIndex: "index.html",
		contexts:       make(map[string]*ContextInfo),
		methods:        make(map[string]bool),
		emptyContext:   &ContextInfo{handlers: map[string]Handler{}},
	}
}

// Name devuelve el nombre del host ("" para el host por defecto).
func (h *VirtualHost) Name() string { return h.name }

// AddAlias añade un nombre alternativo por el que este host responde.
func (h *VirtualHost) AddAlias(alias string) { h.aliases = append(h.aliases, alias) }

// Aliases devuelve los alias del host.
func (h *VirtualHost) Aliases() []string { return h.aliases }

// SetDirectoryIndex fija el nombre del welcome file que se sirve para rutas
// de directorio ("" para desactivarlo).
func (h *VirtualHost) SetDirectoryIndex(index string) { h.directoryIndex = index }

// DirectoryIndex devuelve el welcome file configurado, o "".
func (h *VirtualHost) DirectoryIndex() string { return h.directoryIndex }

// SetAllowGeneratedIndex permite generar páginas de índice para directorios
// sin welcome file.
func (h *VirtualHost) SetAllowGeneratedIndex(allow bool) { h.allowGeneratedIndex = allow }

// AllowGeneratedIndex indica si se generan índices de directorio.
func (h *VirtualHost) AllowGeneratedIndex() bool { return h.allowGeneratedIndex }

// Methods devuelve el conjunto de todos los métodos registrados en cualquier
// contexto del host.
func (h *VirtualHost) Methods() map[string]bool { return h.methods }

// AddContext registra un handler para la ruta y los métodos dados (GET por
// defecto). HEAD no se registra nunca: el motor lo sintetiza a partir de GET
// descartando el cuerpo.
func (h *VirtualHost) AddContext(path string, handler Handler, methods ...string) error {
	if path == "" || path[0] != '/' && path != "*" {
		return fmt.Errorf("context must start with '/' (or be '*'): %q", path)
	}
	if len(methods) == 0 {
		methods = []string{"GET"}
	}
	path = util.TrimRight(util.TrimDuplicates(path, '/'), '/') // la raíz queda en ""
	info := h.contexts[path]
	if info == nil {
		info = &ContextInfo{path: path, handlers: make(map[string]Handler)}
		h.contexts[path] = info
	}
	for _, method := range methods {
		info.handlers[method] = handler
		h.methods[method] = true
	}
	return nil
}

// AddRoutes registra en bloque un conjunto de rutas declarativas.
func (h *VirtualHost) AddRoutes(routes []Route) error {
	for _, r := range routes {
		if err := h.AddContext(r.Path, r.Handler, r.Methods...); err != nil {
			return err
		}
	}
	return nil
}

// Context devuelve el contexto cuya ruta es el prefijo registrado más largo
// de path (con límites alineados a '/'), o el contexto vacío si ni siquiera
// la raíz tiene handler.
func (h *VirtualHost) Context(path string) *ContextInfo {
	// las rutas de contexto se guardan sin barra final
	path = util.TrimRight(path, '/')
	for {
		if info, ok := h.contexts[path]; ok {
			return info
		}
		parent, ok := util.ParentPath(path)
		if !ok {
			return h.emptyContext
		}
		path = parent
	}
}
