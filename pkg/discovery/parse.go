// Copyright 2025 The Eventplane Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package discovery

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// rpcValue is an XML-RPC <value>. Strings may be wrapped in <string> or
// given as bare character data.
type rpcValue struct {
	String *string `xml:"string"`
	Text   string  `xml:",chardata"`
}

type rpcEnvelope struct {
	XMLName xml.Name   `xml:"methodResponse"`
	Values  []rpcValue `xml:"params>param>value"`
	Fault   *rpcValue  `xml:"fault>value"`
}

type serviceDocument struct {
	Services []serviceEntry `xml:",any"`
}

// serviceEntry is one child of the inner document root.
type serviceEntry struct {
	XMLName           xml.Name
	Address           string `xml:"address"`
	Port              string `xml:"port"`
	DataOrigin        string `xml:"dataorigin"`
	DataType          string `xml:"datatype"`
	DataSpecification string `xml:"dataspecification"`
}

// parseEnvelope extracts the text payload of the XML-RPC response, which is
// itself a markup document.
func parseEnvelope(raw []byte) ([]byte, error) {
	var envelope rpcEnvelope
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	if envelope.Fault != nil {
		return nil, fmt.Errorf("%w: proxy returned a fault", ErrMalformed)
	}
	if len(envelope.Values) == 0 || envelope.Values[0].String == nil {
		return nil, fmt.Errorf("%w: no string value in response", ErrMalformed)
	}
	return []byte(*envelope.Values[0].String), nil
}

// parseServices parses the inner document. An empty payload or a root
// without children yields no entries.
func parseServices(inner []byte) ([]serviceEntry, error) {
	if len(bytes.TrimSpace(inner)) == 0 {
		return nil, nil
	}
	var doc serviceDocument
	if err := xml.Unmarshal(inner, &doc); err != nil {
		return nil, fmt.Errorf("%w: service list: %v", ErrMalformed, err)
	}
	return doc.Services, nil
}

// parseResponse runs the markup parser twice: once over the envelope and
// once over the text payload it carries.
func parseResponse(raw []byte) ([]serviceEntry, error) {
	inner, err := parseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return parseServices(inner)
}

// toDescriptor validates the entry. hostname, when not empty, replaces the
// advertised address of a valid entry.
func (e serviceEntry) toDescriptor(hostname string) (SourceDescriptor, error) {
	desc := SourceDescriptor{
		Hostname:          strings.TrimSpace(e.Address),
		DataOrigin:        strings.TrimSpace(e.DataOrigin),
		DataType:          strings.TrimSpace(e.DataType),
		DataSpecification: strings.TrimSpace(e.DataSpecification),
	}
	portText := strings.TrimSpace(e.Port)
	if portText != "" {
		port, err := strconv.Atoi(portText)
		if err != nil || port <= 0 || port > 65535 {
			return desc, fmt.Errorf("%w: port %q is not a valid port", ErrEntryIncomplete, portText)
		}
		desc.Port = port
	}

	var missing []string
	if desc.Hostname == "" {
		missing = append(missing, "address")
	}
	if desc.Port == 0 {
		missing = append(missing, "port")
	}
	if desc.DataOrigin == "" {
		missing = append(missing, "dataorigin")
	}
	if desc.DataType == "" {
		missing = append(missing, "datatype")
	}
	if len(missing) > 0 {
		return desc, fmt.Errorf("%w: missing %s", ErrEntryIncomplete, strings.Join(missing, ", "))
	}
	// Only complete entries are redirected to the proxy node.
	if hostname != "" {
		desc.Hostname = hostname
	}
	return desc, nil
}
