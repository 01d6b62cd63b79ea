package speech

// PropertyID names the well-known configuration and result properties. Free
// string keys work alongside these through SetString/GetString.
type PropertyID string

const (
	PropertyConnectionKey         PropertyID = "SpeechServiceConnection_Key"
	PropertyConnectionRegion      PropertyID = "SpeechServiceConnection_Region"
	PropertyConnectionEndpoint    PropertyID = "SpeechServiceConnection_Endpoint"
	PropertyConnectionEndpointID  PropertyID = "SpeechServiceConnection_EndpointId"
	PropertyAuthorizationToken    PropertyID = "SpeechServiceAuthorization_Token"
	PropertyRecognitionLanguage   PropertyID = "SpeechServiceConnection_RecoLanguage"
	PropertyTranslationToLanguage PropertyID = "SpeechServiceConnection_TranslationToLanguages"
	PropertyTranslationVoice      PropertyID = "SpeechServiceConnection_TranslationVoice"
	PropertyOutputFormat          PropertyID = "SpeechServiceResponse_OutputFormat"
	PropertyResponseJSON          PropertyID = "SpeechServiceResponse_JsonResult"
)

// PropertyCollection is an ordered string key/value store. Iteration order is
// insertion order; setting an existing key keeps its position.
type PropertyCollection struct {
	keys []string
	vals map[string]string
}

// NewPropertyCollection returns an empty collection.
func NewPropertyCollection() *PropertyCollection {
	return &PropertyCollection{vals: make(map[string]string)}
}

// Set stores a well-known property.
func (p *PropertyCollection) Set(id PropertyID, value string) {
	p.SetString(string(id), value)
}

// SetString stores a free-form property.
func (p *PropertyCollection) SetString(key, value string) {
	if _, ok := p.vals[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = value
}

// Get reads a well-known property, returning def when unset.
func (p *PropertyCollection) Get(id PropertyID, def string) string {
	return p.GetString(string(id), def)
}

// GetString reads a free-form property, returning def when unset.
func (p *PropertyCollection) GetString(key, def string) string {
	if v, ok := p.vals[key]; ok {
		return v
	}
	return def
}

// Keys returns the property names in insertion order.
func (p *PropertyCollection) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Clone returns an independent copy. Mutating the clone never affects the
// original and vice versa.
func (p *PropertyCollection) Clone() *PropertyCollection {
	c := NewPropertyCollection()
	for _, k := range p.keys {
		c.SetString(k, p.vals[k])
	}
	return c
}
