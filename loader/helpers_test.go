package loader

import (
	"io"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/parser"
)

func parseFile(input io.Reader, sourceName string) (*decl.FileDecl, error) {
	return parser.Parse(input, sourceName)
}
