package probe

import "strings"

type URLType string

const (
	URLTypeAPI        URLType = "API"
	URLTypeWebsite    URLType = "Website"
	URLTypeXML        URLType = "XML Endpoint"
	URLTypeJavaScript URLType = "JavaScript File"
	URLTypeImage      URLType = "Image"
	URLTypeResource   URLType = "Resource"
	URLTypeUnknown    URLType = "Unknown"
	URLTypeNetwork    URLType = "Network"
)

// DetectURLType labels a target from its Content-Type header.
func DetectURLType(contentType string) URLType {
	if contentType == "" {
		return URLTypeUnknown
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json"), strings.Contains(ct, "application/vnd.api+json"):
		return URLTypeAPI
	case strings.Contains(ct, "text/html"):
		return URLTypeWebsite
	case strings.Contains(ct, "application/xml"), strings.Contains(ct, "text/xml"):
		return URLTypeXML
	case strings.Contains(ct, "application/javascript"), strings.Contains(ct, "text/javascript"):
		return URLTypeJavaScript
	case strings.Contains(ct, "image/"):
		return URLTypeImage
	default:
		return URLTypeResource
	}
}
