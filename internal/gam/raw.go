package gam

import "encoding/xml"

// MarshalXML writes the element back in the payload's default namespace.
// xsi attributes keep the envelope's xsi prefix.
func (r RawElement) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: xml.Name{Local: r.XMLName.Local}}
	for _, a := range r.Attrs {
		switch a.Name.Space {
		case "":
			if a.Name.Local == "xmlns" {
				continue
			}
		case "xmlns":
			a.Name = xml.Name{Local: "xmlns:" + a.Name.Local}
		case xsiNS, "xsi":
			a.Name = xml.Name{Local: "xsi:" + a.Name.Local}
		}
		start.Attr = append(start.Attr, a)
	}
	return e.EncodeElement(struct {
		Inner []byte `xml:",innerxml"`
	}{r.Inner}, start)
}

// UnmarshalXML decodes a criteria node and keeps its xsi:type, which the
// attribute tag alone cannot match on read.
func (c *CustomCriteria) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain CustomCriteria
	var p plain
	if err := d.DecodeElement(&p, &start); err != nil {
		return err
	}
	p.XSIType = xsiType(start)
	*c = CustomCriteria(p)
	return nil
}

func xsiType(start xml.StartElement) string {
	for _, a := range start.Attr {
		if a.Name.Local == "type" && (a.Name.Space == xsiNS || a.Name.Space == "xsi") {
			return a.Value
		}
	}
	return ""
}
