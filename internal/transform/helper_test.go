package transform_test

import (
	"net/url"
	"strings"

	"github.com/stretchr/testify/mock"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/connector-etl/internal/extractor"
	"github.com/rohmanhakim/connector-etl/internal/mdconvert"
	"github.com/rohmanhakim/connector-etl/internal/sanitizer"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

type extractorMock struct {
	mock.Mock
}

func (e *extractorMock) Extract(sourceUrl url.URL, htmlByte []byte) (extractor.ExtractionResult, failure.ClassifiedError) {
	args := e.Called(sourceUrl, htmlByte)
	result := args.Get(0).(extractor.ExtractionResult)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return result, err
}

type sanitizerMock struct {
	mock.Mock
}

func (s *sanitizerMock) Sanitize(inputContentNode *html.Node) (sanitizer.SanitizedHTMLDoc, failure.ClassifiedError) {
	args := s.Called(inputContentNode)
	result := args.Get(0).(sanitizer.SanitizedHTMLDoc)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return result, err
}

type convertRuleMock struct {
	mock.Mock
}

func (c *convertRuleMock) Convert(sanitizedHTMLDoc sanitizer.SanitizedHTMLDoc) (mdconvert.ConversionResult, failure.ClassifiedError) {
	args := c.Called(sanitizedHTMLDoc)
	result := args.Get(0).(mdconvert.ConversionResult)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return result, err
}

func mustParseHTML(raw string) *html.Node {
	node, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return node
}
