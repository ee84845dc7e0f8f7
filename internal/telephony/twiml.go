package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"sort"
)

// TwiML builder for the call legs we produce. Struct-based encoding/xml,
// no provider SDK dependency.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type twimlConnect struct {
	XMLName xml.Name     `xml:"Connect"`
	Stream  *twimlStream `xml:"Stream,omitempty"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// StreamTwiML renders a <Connect><Stream> document pointing the call's media
// stream at wsURL, with params exposed to the stream's start frame as custom
// parameters.
func StreamTwiML(wsURL string, params map[string]string) (string, error) {
	stream, err := buildStream(wsURL, params)
	if err != nil {
		return "", err
	}
	return renderTwiML(twimlResponse{Verbs: []any{twimlConnect{Stream: stream}}})
}

// WelcomeStreamTwiML renders the inbound-call document: a short spoken
// greeting, a beat of silence, then the media-stream connect.
func WelcomeStreamTwiML(wsURL string, params map[string]string) (string, error) {
	stream, err := buildStream(wsURL, params)
	if err != nil {
		return "", err
	}
	doc := twimlResponse{Verbs: []any{
		twimlSay{Text: "Please wait while we connect you to your care scheduling assistant."},
		twimlPause{Length: 1},
		twimlConnect{Stream: stream},
	}}
	return renderTwiML(doc)
}

func buildStream(wsURL string, params map[string]string) (*twimlStream, error) {
	if wsURL == "" {
		return nil, errors.New("telephony: stream url required")
	}
	stream := &twimlStream{URL: wsURL}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stream.Parameters = append(stream.Parameters, twimlParameter{Name: name, Value: params[name]})
	}
	return stream, nil
}

func renderTwiML(doc twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
