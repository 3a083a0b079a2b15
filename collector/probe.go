package collector

// ProbeScript runs inside the page and reports every rendered <img> element
// together with its Resource Timing entry, matched by exact URL against
// currentSrc/src. The return value is plain data; classification and
// aggregation happen on the host side of the boundary.
//
// Cross-origin responses without Timing-Allow-Origin produce entries whose
// network phases are zeroed; those are reported with hasTiming=false, same as
// a missing entry.
const ProbeScript = `(() => {
	const byURL = {};
	for (const entry of performance.getEntriesByType('resource')) {
		byURL[entry.name] = entry;
	}
	return Array.from(document.images).map((img) => {
		const url = img.currentSrc || img.src || '';
		const entry = byURL[url];
		const hasTiming = !!entry && entry.responseStart > 0;
		return {
			url: url,
			complete: img.complete,
			naturalWidth: img.naturalWidth,
			hasTiming: hasTiming,
			startTime: hasTiming ? entry.startTime : 0,
			responseStart: hasTiming ? entry.responseStart : 0,
			responseEnd: hasTiming ? entry.responseEnd : 0,
			duration: hasTiming ? entry.duration : 0,
			transferSize: hasTiming ? entry.transferSize : 0
		};
	});
})()`

// RawImage is one <img> element as serialized by ProbeScript.
type RawImage struct {
	URL           string  `json:"url"`
	Complete      bool    `json:"complete"`
	NaturalWidth  int     `json:"naturalWidth"`
	HasTiming     bool    `json:"hasTiming"`
	StartTime     float64 `json:"startTime"`
	ResponseStart float64 `json:"responseStart"`
	ResponseEnd   float64 `json:"responseEnd"`
	Duration      float64 `json:"duration"`
	TransferSize  float64 `json:"transferSize"`
}
