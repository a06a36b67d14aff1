// Package multipart itera sobre las partes de una petición
// multipart/form-data sin cargar el cuerpo en memoria: el stream de cada
// parte termina en la frontera siguiente y puede leerse o saltarse.
package multipart

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"so-http11-embed/internal/http11"
)

// Part es una parte del multipart: el campo de formulario name, el filename
// original si lo hay, sus headers y el stream de su contenido.
type Part struct {
	Name     string
	Filename string
	Headers  *http11.Headers
	Body     io.Reader
}

// String devuelve el contenido de la parte como cadena UTF-8 (tope 8 KiB).
func (p *Part) String() (string, error) {
	b, err := http11.ReadAllLimit(p.Body, 8192)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Iterator recorre las partes de una petición multipart/form-data.
type Iterator struct {
	r        *bufio.Reader
	boundary string
	delim    []byte // "\r\n--" + boundary
	part     *partReader
	done     bool
}

// NewIterator construye un iterador sobre el cuerpo de la petición. El
// Content-Type debe ser multipart/form-data con parámetro boundary.
func NewIterator(req *http11.Request) (*Iterator, error) {
	params := req.Headers().Params("Content-Type")
	if _, ok := params["multipart/form-data"]; !ok {
		return nil, errors.New("Content-Type is not multipart/form-data")
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("Content-Type is missing boundary")
	}
	return &Iterator{
		r:        bufio.NewReaderSize(req.Body(), 4096),
		boundary: boundary,
		delim:    []byte("\r\n--" + boundary),
	}, nil
}

// Next avanza a la siguiente parte, descartando lo que quede sin leer de la
// actual. Devuelve io.EOF tras la última parte.
func (it *Iterator) Next() (*Part, error) {
	if it.done {
		return nil, io.EOF
	}
	if it.part == nil {
		// frontera inicial: se ignora cualquier preámbulo
		if err := it.skipPreamble(); err != nil {
			return nil, err
		}
	} else {
		if err := http11.Transfer(nil, it.part, -1); err != nil {
			return nil, err
		}
		if it.part.last {
			it.done = true
			return nil, io.EOF
		}
	}
	headers, err := http11.ReadHeaders(it.r)
	if err != nil {
		return nil, err
	}
	cd := headers.Params("Content-Disposition")
	it.part = &partReader{r: it.r, delim: it.delim}
	return &Part{
		Name:     cd["name"],
		Filename: cd["filename"],
		Headers:  headers,
		Body:     it.part,
	}, nil
}

// skipPreamble consume líneas hasta la primera línea de frontera.
func (it *Iterator) skipPreamble() error {
	for {
		line, err := http11.ReadLine(it.r)
		if err != nil {
			return fmt.Errorf("missing initial boundary: %w", err)
		}
		switch line {
		case "--" + it.boundary:
			return nil
		case "--" + it.boundary + "--":
			it.done = true
			return io.EOF
		}
	}
}

// partReader expone los bytes de una parte hasta la frontera siguiente, que
// consume junto con su fin de línea. last queda activo si la frontera era la
// terminal ("--boundary--").
type partReader struct {
	r        *bufio.Reader
	delim    []byte
	finished bool
	last     bool
}

func (p *partReader) Read(b []byte) (int, error) {
	if p.finished {
		return 0, io.EOF
	}
	if len(b) == 0 {
		return 0, nil
	}
	want := len(p.delim) + len(b)
	if want > p.r.Size() {
		want = p.r.Size()
	}
	peek, err := p.r.Peek(want)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return 0, err
	}
	idx := bytes.Index(peek, p.delim)
	if idx == 0 {
		// frontera alcanzada: consumirla junto con su fin de línea
		if _, err := p.r.Discard(len(p.delim)); err != nil {
			return 0, err
		}
		if err := p.consumeBoundaryEnd(); err != nil {
			return 0, err
		}
		p.finished = true
		return 0, io.EOF
	}
	safe := idx
	if idx < 0 {
		if len(peek) <= len(p.delim) {
			// sin frontera y sin datos suficientes: el cuerpo acabó antes
			return 0, io.ErrUnexpectedEOF
		}
		// todo menos una cola que podría ser el principio de la frontera
		safe = len(peek) - len(p.delim) + 1
	}
	if safe > len(b) {
		safe = len(b)
	}
	copy(b, peek[:safe])
	if _, err := p.r.Discard(safe); err != nil {
		return 0, err
	}
	return safe, nil
}

// consumeBoundaryEnd lee lo que sigue a la frontera: "--" la marca como
// terminal; en cualquier caso se consume hasta el fin de línea.
func (p *partReader) consumeBoundaryEnd() error {
	rest, err := http11.ReadLine(p.r)
	if err != nil {
		return err
	}
	if rest == "--" {
		p.last = true
	}
	return nil
}
