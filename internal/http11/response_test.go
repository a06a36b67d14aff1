package http11

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"
)

/* ================== helpers comunes ================== */

type parsedHTTP struct {
	StatusLine string
	Code       int
	Reason     string
	Headers    map[string]string
	Body       string
}

// parseHTTP trocea una respuesta cruda en línea de status, headers y cuerpo.
func parseHTTP(raw string) parsedHTTP {
	head, body, _ := strings.Cut(raw, "\r\n\r\n")
	lines := strings.Split(head, "\r\n")
	sl := lines[0]
	h := make(map[string]string)
	for _, ln := range lines[1:] {
		if k, v, ok := strings.Cut(ln, ":"); ok {
			h[k] = strings.TrimSpace(v)
		}
	}
	code := 0
	reason := ""
	if fs := strings.Fields(sl); len(fs) >= 3 {
		code, _ = strconv.Atoi(fs[1])
		reason = strings.Join(fs[2:], " ")
	}
	return parsedHTTP{StatusLine: sl, Code: code, Reason: reason, Headers: h, Body: body}
}

// newTestResponse devuelve una respuesta sobre un buffer y el propio buffer.
func newTestResponse() (*Response, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewResponse(bufio.NewWriter(&buf)), &buf
}

// bindReq asocia a la respuesta una petición construida del texto crudo.
func bindReq(t *testing.T, resp *Response, raw string) *Request {
	t.Helper()
	req, err := ReadRequest(reader(raw), testHosts(), 80, false)
	if err != nil {
		t.Fatal(err)
	}
	resp.BindRequest(req)
	return req
}

/* ================== tests ================== */

func TestWriteHeader_StatusLine(t *testing.T) {
	resp, buf := newTestResponse()
	resp.Headers().Add("X-Test", "1")
	if err := resp.WriteHeader(204); err != nil {
		t.Fatal(err)
	}
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.StatusLine != "HTTP/1.1 204 No Content" {
		t.Fatalf("status line: %q", pr.StatusLine)
	}
	if pr.Headers["X-Test"] != "1" || pr.Headers["Server"] == "" {
		t.Fatalf("headers: %v", pr.Headers)
	}
	if d := pr.Headers["Date"]; d == "" {
		t.Fatal("falta Date")
	} else if _, err := ParseDate(d); err != nil {
		t.Fatalf("Date no RFC1123: %q", d)
	}
	// reenviar headers es un error
	if err := resp.WriteHeader(200); err == nil {
		t.Fatal("WriteHeader debe ser de un solo uso")
	}
}

func TestWriteHeader_UnknownStatus(t *testing.T) {
	resp, buf := newTestResponse()
	resp.WriteHeader(299)
	resp.Close()
	if !strings.HasPrefix(buf.String(), "HTTP/1.1 299 Unknown Status\r\n") {
		t.Fatalf("status desconocido: %q", buf.String())
	}
}

func TestSendHeaders_KnownLength(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	if err := resp.SendHeaders(200, 5, time.Time{}, "", "text/plain", nil); err != nil {
		t.Fatal(err)
	}
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Headers["Content-Length"] != "5" || pr.Headers["Content-Type"] != "text/plain" {
		t.Fatalf("framing: %v", pr.Headers)
	}
	if pr.Headers["Vary"] != "Accept-Encoding" {
		t.Fatalf("Vary: %v", pr.Headers)
	}
	if _, ok := pr.Headers["Transfer-Encoding"]; ok {
		t.Fatal("longitud conocida no usa chunked")
	}
}

func TestSendHeaders_UnknownLengthChunked(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	resp.SendHeaders(200, -1, time.Time{}, "", "application/octet-stream", nil)
	body, err := resp.Body()
	if err != nil {
		t.Fatal(err)
	}
	body.Write([]byte("datos"))
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Headers["Transfer-Encoding"] != "chunked" {
		t.Fatalf("longitud desconocida usa chunked: %v", pr.Headers)
	}
	if pr.Body != "5\r\ndatos\r\n0\r\n\r\n" {
		t.Fatalf("cuerpo chunked: %q", pr.Body)
	}
}

func TestSendHeaders_LegacyClientNoChunked(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.0\r\n\r\n")
	resp.SendHeaders(200, -1, time.Time{}, "", "text/plain", nil)
	resp.Close()
	pr := parseHTTP(buf.String())
	if _, ok := pr.Headers["Transfer-Encoding"]; ok {
		t.Fatal("un cliente 1.0 nunca recibe transfer encodings")
	}
	if _, ok := pr.Headers["Content-Length"]; ok {
		t.Fatal("longitud desconocida en 1.0 es stream hasta cierre")
	}
}

func TestSendHeaders_GzipNegotiated(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\nAccept-Encoding: gzip, deflate\r\n\r\n")
	resp.SendHeaders(200, -1, time.Time{}, "", "text/html", nil)
	body, err := resp.Body()
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(body, "contenido comprimible")
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Headers["Transfer-Encoding"] != "chunked" || pr.Headers["Content-Encoding"] != "gzip" {
		t.Fatalf("negociación: %v", pr.Headers)
	}
	// descodifica chunked y gzip para recuperar el texto
	c := NewChunkedReader(bufio.NewReader(strings.NewReader(pr.Body)), nil)
	gz, err := gzip.NewReader(c)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := io.ReadAll(gz)
	if err != nil || string(plain) != "contenido comprimible" {
		t.Fatalf("gzip: %q %v", plain, err)
	}
}

func TestSendHeaders_DeflateFallback(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\nAccept-Encoding: deflate\r\n\r\n")
	resp.SendHeaders(200, -1, time.Time{}, "", "text/html", nil)
	body, _ := resp.Body()
	io.WriteString(body, "texto")
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Headers["Content-Encoding"] != "deflate" {
		t.Fatalf("deflate: %v", pr.Headers)
	}
	c := NewChunkedReader(bufio.NewReader(strings.NewReader(pr.Body)), nil)
	fr := flate.NewReader(c)
	plain, err := io.ReadAll(fr)
	if err != nil || string(plain) != "texto" {
		t.Fatalf("deflate: %q %v", plain, err)
	}
}

func TestSendHeaders_SmallBodyNotCompressed(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\nAccept-Encoding: gzip\r\n\r\n")
	resp.SendHeaders(200, 100, time.Time{}, "", "text/html", nil)
	resp.Close()
	pr := parseHTTP(buf.String())
	if _, ok := pr.Headers["Content-Encoding"]; ok {
		t.Fatal("cuerpos de <= 300 bytes no se comprimen")
	}
	if pr.Headers["Content-Length"] != "100" {
		t.Fatalf("framing: %v", pr.Headers)
	}
}

func TestSendHeaders_IncompressibleType(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\nAccept-Encoding: gzip\r\n\r\n")
	resp.SendHeaders(200, 5000, time.Time{}, "", "image/png", nil)
	resp.Close()
	pr := parseHTTP(buf.String())
	if _, ok := pr.Headers["Content-Encoding"]; ok {
		t.Fatal("image/png no es comprimible")
	}
}

func TestSendHeaders_RangeRewrites206(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET /f HTTP/1.1\r\nHost: x\r\n\r\n")
	resp.SendHeaders(200, 26, time.Time{}, "", "text/plain", &Range{Start: 5, End: 9})
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Code != 206 {
		t.Fatalf("status: %d", pr.Code)
	}
	if pr.Headers["Content-Range"] != "bytes 5-9/26" || pr.Headers["Content-Length"] != "5" {
		t.Fatalf("rango: %v", pr.Headers)
	}
}

func TestSendHeaders_LastModifiedClamped(t *testing.T) {
	resp, buf := newTestResponse()
	future := time.Now().Add(24 * time.Hour)
	resp.SendHeaders(200, 0, future, "", "text/plain", nil)
	resp.Close()
	pr := parseHTTP(buf.String())
	lm, err := ParseDate(pr.Headers["Last-Modified"])
	if err != nil {
		t.Fatal(err)
	}
	if lm.After(time.Now().Add(time.Minute)) {
		t.Fatalf("Last-Modified en el futuro: %v", lm)
	}
}

func TestSendHeaders_EchoesConnectionClose(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	resp.SendHeaders(200, 0, time.Time{}, "", "", nil)
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Headers["Connection"] != "close" {
		t.Fatalf("eco de close: %v", pr.Headers)
	}
	if pr.Headers["Content-Type"] != "application/octet-stream" {
		t.Fatalf("content type por defecto: %v", pr.Headers)
	}
}

func TestSend_TextBody(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	resp.Headers().Add("Content-Type", "text/plain")
	if err := resp.Send(200, "Hello"); err != nil {
		t.Fatal(err)
	}
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Code != 200 || pr.Body != "Hello" {
		t.Fatalf("Send: %d %q", pr.Code, pr.Body)
	}
	if pr.Headers["Content-Length"] != "5" || pr.Headers["Content-Type"] != "text/plain" {
		t.Fatalf("headers: %v", pr.Headers)
	}
	if !strings.HasPrefix(pr.Headers["ETag"], `W/"`) {
		t.Fatalf("ETag débil: %q", pr.Headers["ETag"])
	}
}

func TestSendError_EscapesMessage(t *testing.T) {
	resp, buf := newTestResponse()
	resp.SendError(404, "<script>")
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Code != 404 || !strings.Contains(pr.Body, "&lt;script&gt;") {
		t.Fatalf("escape: %d %q", pr.Code, pr.Body)
	}
	if !strings.Contains(pr.Body, "404 Not Found") {
		t.Fatalf("descripción: %q", pr.Body)
	}
}

func TestRedirect(t *testing.T) {
	resp, buf := newTestResponse()
	resp.Redirect("http://x/destino", false)
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Code != 302 || pr.Headers["Location"] != "http://x/destino" {
		t.Fatalf("redirect: %d %v", pr.Code, pr.Headers)
	}
	if pr.Body == "" {
		t.Fatal("la redirección lleva un cuerpo corto")
	}

	resp2, buf2 := newTestResponse()
	resp2.Redirect("http://x/permanente", true)
	resp2.Close()
	if parseHTTP(buf2.String()).Code != 301 {
		t.Fatal("permanente es 301")
	}
}

func TestSendBody_Range(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	rng := &Range{Start: 5, End: 9}
	resp.SendHeaders(200, 26, time.Time{}, "", "text/plain", rng)
	err := resp.SendBody(strings.NewReader("abcdefghijklmnopqrstuvwxyz"), 26, rng)
	if err != nil {
		t.Fatal(err)
	}
	resp.Close()
	pr := parseHTTP(buf.String())
	if pr.Body != "fghij" {
		t.Fatalf("cuerpo del rango: %q", pr.Body)
	}
}

func TestDiscardBody(t *testing.T) {
	resp, buf := newTestResponse()
	bindReq(t, resp, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	resp.SetDiscardBody(true)
	resp.Send(200, "Hello")
	resp.Close()
	pr := parseHTTP(buf.String())
	// los headers son los de un GET normal, pero sin cuerpo
	if pr.Headers["Content-Length"] != "5" || pr.Body != "" {
		t.Fatalf("descarte: %v %q", pr.Headers, pr.Body)
	}
}

func TestClose_FlushesWithoutBody(t *testing.T) {
	resp, buf := newTestResponse()
	resp.WriteHeader(204)
	if err := resp.Close(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("Close debe hacer flush del buffer subyacente")
	}
}
