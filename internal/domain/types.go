package domain

// SVGPage is one rendered page as returned by POST /rendersvg.
type SVGPage struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// SVGResponse is the body of a successful POST /rendersvg.
type SVGResponse struct {
	SVGs []SVGPage `json:"svgs"`
}
