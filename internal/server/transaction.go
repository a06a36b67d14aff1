package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sort"
	"strings"
	"time"

	"so-http11-embed/internal/http11"
	"so-http11-embed/internal/util"
)

// handleConnection procesa transacciones sucesivas sobre los streams de una
// conexión hasta que terminen, falle algo o alguien pida Connection: close.
func (s *Server) handleConnection(in io.Reader, out io.Writer) {
	br := bufio.NewReaderSize(in, 4096)
	bw := bufio.NewWriterSize(out, 4096)
	for {
		resp := http11.NewResponse(bw)
		req, err := http11.ReadRequest(br, s, s.port, s.secure())
		if err != nil {
			if errors.Is(err, http11.ErrMissingRequestLine) {
				return // conexión ociosa: cierre silencioso
			}
			resp.Headers().Add("Connection", "close")
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				resp.SendError(408, "Timeout waiting for client request")
			} else {
				resp.SendError(400, "Invalid request: "+err.Error())
			}
			resp.Close()
			return
		}
		if err := s.handleTransaction(req, resp); err != nil {
			if resp.HeadersSent() {
				// sin forma de recuperar: abortar la conexión
				resp.Close()
				return
			}
			// se descarta lo acumulado y se responde el error
			resp = http11.NewResponse(bw)
			resp.Headers().Add("Connection", "close")
			resp.SendError(500, "Error processing request: "+err.Error())
			resp.Close()
			return
		}
		if err := resp.Close(); err != nil {
			return
		}
		// drena el cuerpo no leído para alinear el stream con la
		// siguiente petición
		if err := http11.Transfer(nil, req.Body(), -1); err != nil {
			return
		}
		// RFC7230#6.6: la conexión persiste salvo petición explícita de
		// cierre o cliente antiguo
		if strings.EqualFold(req.Headers().Get("Connection"), "close") ||
			strings.EqualFold(resp.Headers().Get("Connection"), "close") ||
			!strings.HasSuffix(req.Version(), "1.1") {
			return
		}
	}
}

// handleTransaction procesa una transacción: validación, preproceso y
// despacho por método. Un pánico del handler se convierte en error para que
// el loop de conexión responda 500 o aborte.
func (s *Server) handleTransaction(req *http11.Request, resp *http11.Response) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	resp.BindRequest(req)
	proceed, err := s.preprocess(req, resp)
	if err != nil || !proceed {
		return err
	}
	return s.handleMethod(req, resp)
}

// preprocess valida la transacción y atiende los headers especiales.
// Devuelve false si ya se respondió y no hay que seguir procesando.
func (s *Server) preprocess(req *http11.Request, resp *http11.Response) (bool, error) {
	headers := req.Headers()
	switch version := req.Version(); version {
	case "HTTP/1.1":
		if !headers.Contains("Host") {
			// RFC2616#14.23: sin Host, 400
			return false, respond(resp, 400, "Missing required Host header")
		}
		if expect, ok := headers.Lookup("Expect"); ok {
			if strings.EqualFold(expect, "100-continue") {
				// responde el continue antes de leer el cuerpo
				temp := http11.NewResponse(resp.Output())
				if err := temp.WriteHeader(100); err != nil {
					return false, err
				}
				if err := resp.Output().Flush(); err != nil {
					return false, err
				}
			} else {
				// RFC2616#14.20: Expect desconocido, 417
				return false, respond(resp, 417, "")
			}
		}
	case "HTTP/1.0", "HTTP/0.9":
		// RFC2616#14.10: purga de headers hop-by-hop en versiones viejas.
		// Nota: también elimina cualquier header condicional que el
		// cliente nombre en Connection; se conserva tal cual por
		// compatibilidad con la semántica histórica.
		for _, token := range util.SplitElements(headers.Get("Connection"), false) {
			headers.Remove(token)
		}
	default:
		return false, respond(resp, 400, "Unknown version: "+version)
	}
	return true, nil
}

// respond envía un error con Connection: close y corta el procesamiento.
func respond(resp *http11.Response, status int, text string) error {
	resp.Headers().Add("Connection", "close")
	return resp.SendError(status, text)
}

// handleMethod despacha la transacción según el método.
func (s *Server) handleMethod(req *http11.Request, resp *http11.Response) error {
	method := req.Method
	handlers := req.Context().Handlers()
	switch {
	// RFC2616#5.1.1: GET y HEAD deben estar soportados
	case method == "GET" || handlers[method] != nil:
		return s.serve(req, resp) // el contexto lo atiende (o 404)
	case method == "HEAD": // HEAD sintetizado: un GET sin cuerpo
		req.Method = "GET"
		resp.SetDiscardBody(true)
		return s.serve(req, resp)
	case method == "TRACE":
		return s.handleTrace(req, resp)
	default:
		methods := []string{"GET", "HEAD", "TRACE", "OPTIONS"} // métodos de serie
		// "*" es una petición a nivel de servidor que solo soporta OPTIONS
		serverOptions := req.Path() == "*" && method == "OPTIONS"
		var extra []string
		if serverOptions {
			for m := range req.VirtualHost().Methods() {
				extra = append(extra, m)
			}
		} else {
			for m := range handlers {
				extra = append(extra, m)
			}
		}
		sort.Strings(extra)
		for _, m := range extra {
			if !slices.Contains(methods, m) {
				methods = append(methods, m)
			}
		}
		resp.Headers().Add("Allow", strings.Join(methods, ", "))
		switch {
		case method == "OPTIONS":
			resp.Headers().Add("Content-Length", "0") // RFC2616#9.2
			return resp.WriteHeader(200)
		case req.VirtualHost().Methods()[method]:
			// soportado por el host pero no por este contexto
			resp.Headers().Add("Content-Length", "0")
			return resp.WriteHeader(405)
		default:
			return resp.SendError(501, "")
		}
	}
}

// handleTrace responde un TRACE: eco de la línea de petición, headers y
// cuerpo como message/http.
func (s *Server) handleTrace(req *http11.Request, resp *http11.Response) error {
	if err := resp.SendHeaders(200, -1, time.Time{}, "", "message/http", nil); err != nil {
		return err
	}
	body, err := resp.Body()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(body, "TRACE %s %s\r\n", req.URL(), req.Version()); err != nil {
		return err
	}
	if err := req.Headers().WriteTo(body); err != nil {
		return err
	}
	return http11.Transfer(body, req.Body(), -1)
}

// serve invoca el handler del contexto para el método pedido, aplicando la
// convención de welcome file: para rutas de directorio con índice
// configurado se intenta primero la ruta con el índice añadido y, si esa
// búsqueda devolvió 404, la original.
func (s *Server) serve(req *http11.Request, resp *http11.Response) error {
	handler := req.Context().Handlers()[req.Method]
	if handler == nil {
		return resp.SendError(404, "")
	}
	status := 404
	path := req.Path()
	if strings.HasSuffix(path, "/") {
		if index := req.VirtualHost().DirectoryIndex(); index != "" {
			req.SetPath(path + index)
			st, err := handler.Serve(req, resp)
			if err != nil {
				return err
			}
			status = st
			req.SetPath(path)
		}
	}
	if status == 404 {
		st, err := handler.Serve(req, resp)
		if err != nil {
			return err
		}
		status = st
	}
	if status > 0 {
		return resp.SendError(status, "")
	}
	return nil
}
