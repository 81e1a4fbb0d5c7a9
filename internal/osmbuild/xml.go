package osmbuild

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseXMLFile streams an OSM XML file into the builder.
// Supports both plain XML and gzip-compressed files.
func ParseXMLFile(ctx context.Context, filename string, b *Builder) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open OSM file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	if strings.HasSuffix(filename, ".gz") {
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return ParseXML(ctx, reader, b)
}

// ParseXML streams OSM XML from a reader into the builder, translating each
// XML token into an element start/end event. The builder never sees the
// decoder, only the event stream, so other drivers can feed it the same way.
func ParseXML(ctx context.Context, reader io.Reader, b *Builder) error {
	decoder := xml.NewDecoder(reader)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("XML parse error: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			attrs := make(map[string]string, len(t.Attr))
			for _, attr := range t.Attr {
				attrs[attr.Name.Local] = attr.Value
			}
			b.OnElementStart(t.Name.Local, attrs)
		case xml.EndElement:
			b.OnElementEnd(t.Name.Local)
		}
	}

	return nil
}
