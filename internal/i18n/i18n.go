// Package i18n holds the operator-facing copy for risk summaries and
// mitigation plans. Every supported language code is accepted; languages
// without their own table use English copy.
package i18n

import (
	"fmt"
	"slices"
	"strings"

	"crowdrisk/internal/types"
)

// Default is the fallback language code.
const Default = "en"

// Supported lists the accepted language codes.
var Supported = []string{"en", "hi", "ta", "te", "bn", "mr", "gu", "kn", "ml", "pa"}

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"ta": "Tamil",
	"te": "Telugu",
	"bn": "Bengali",
	"mr": "Marathi",
	"gu": "Gujarati",
	"kn": "Kannada",
	"ml": "Malayalam",
	"pa": "Punjabi",
}

// MessageKey identifies one piece of mitigation copy.
type MessageKey string

const (
	AdvisoryControlled MessageKey = "advisory_controlled"
	AdvisoryRed        MessageKey = "advisory_red"
	Monitor            MessageKey = "monitor"
	MonitorMinimal     MessageKey = "monitor_min"
	ActionStaggered    MessageKey = "action_staggered"
	ActionShuttle      MessageKey = "action_shuttle"
	ActionParking      MessageKey = "action_parking"
	ActionAQI          MessageKey = "action_aqi"
	ActionWeather      MessageKey = "action_weather"
)

// table is the copy for one language. Summary templates take the location
// name, the driver label and the formatted utilization, in that order.
type table struct {
	drivers  map[types.Driver]string
	summary  map[types.RiskLevel]string
	messages map[MessageKey]string
}

var tables = map[string]table{
	"en": {
		drivers: map[types.Driver]string{
			types.DriverCrowdLoad:          "crowd load",
			types.DriverWeatherEnvironment: "weather and AQI",
			types.DriverTraffic:            "traffic pressure",
			types.DriverSocialSignal:       "social media surge",
		},
		summary: map[types.RiskLevel]string{
			types.RiskRed:    "%s is in red risk. Main pressure comes from %s. Expected capacity utilization is %s%%.",
			types.RiskYellow: "%s is in yellow risk. Monitor %s closely. Expected capacity utilization is %s%%.",
			types.RiskGreen:  "%s is currently green risk with controlled %s. Expected capacity utilization is %s%%.",
		},
		messages: map[MessageKey]string{
			AdvisoryControlled: "Risk is within controlled thresholds.",
			AdvisoryRed:        "Risk exceeds red threshold. Immediate mitigation recommended.",
			Monitor:            "Maintain active monitoring; no crowd escalation required yet.",
			MonitorMinimal:     "Maintain active monitoring; no escalation required.",
			ActionStaggered:    "Implement staggered entry windows in 30-minute slots.",
			ActionShuttle:      "Activate shuttle movement from satellite parking zones.",
			ActionParking:      "Apply selective parking restrictions around core perimeter.",
			ActionAQI:          "Issue AQI health advisory and prioritize masks/indoor holding areas for vulnerable visitors.",
			ActionWeather:      "Activate weather safety plan with shelter routing, rain gear kiosks, and extra field marshals.",
		},
	},
	"hi": {
		drivers: map[types.Driver]string{
			types.DriverCrowdLoad:          "भीड़ दबाव",
			types.DriverWeatherEnvironment: "मौसम और AQI",
			types.DriverTraffic:            "ट्रैफिक दबाव",
			types.DriverSocialSignal:       "सोशल मीडिया वृद्धि",
		},
		summary: map[types.RiskLevel]string{
			types.RiskRed:    "%s रेड जोखिम में है। मुख्य दबाव %s से आ रहा है। अनुमानित क्षमता उपयोग %s%% है।",
			types.RiskYellow: "%s येलो जोखिम में है। %s पर करीबी निगरानी रखें। अनुमानित क्षमता उपयोग %s%% है।",
			types.RiskGreen:  "%s फिलहाल ग्रीन जोखिम में है और %s नियंत्रित है। अनुमानित क्षमता उपयोग %s%% है।",
		},
		messages: map[MessageKey]string{
			AdvisoryControlled: "जोखिम नियंत्रित सीमा में है।",
			AdvisoryRed:        "जोखिम रेड थ्रेशोल्ड से ऊपर है। तुरंत शमन कार्रवाई आवश्यक है।",
			Monitor:            "सक्रिय निगरानी जारी रखें; अभी भीड़ वृद्धि नियंत्रण में है।",
			MonitorMinimal:     "सक्रिय निगरानी जारी रखें; अभी एस्केलेशन आवश्यक नहीं है।",
			ActionStaggered:    "30 मिनट स्लॉट में चरणबद्ध प्रवेश लागू करें।",
			ActionShuttle:      "सैटेलाइट पार्किंग से शटल संचालन सक्रिय करें।",
			ActionParking:      "मुख्य परिधि के आसपास चयनित पार्किंग प्रतिबंध लागू करें।",
			ActionAQI:          "AQI स्वास्थ्य सलाह जारी करें और संवेदनशील आगंतुकों के लिए मास्क/इनडोर होल्डिंग प्राथमिकता दें।",
			ActionWeather:      "शेल्टर रूटिंग, रेन गियर कियोस्क और अतिरिक्त फील्ड मार्शल के साथ मौसम सुरक्षा योजना सक्रिय करें।",
		},
	},
}

// IsSupported reports whether code is an accepted language code as given.
func IsSupported(code string) bool {
	return slices.Contains(Supported, code)
}

// Normalize trims and lower-cases code; unsupported or empty codes become
// Default.
func Normalize(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if IsSupported(c) {
		return c
	}
	return Default
}

// Name returns the English display name of a language code.
func Name(code string) string {
	return languageNames[Normalize(code)]
}

func lookup(code string) table {
	if t, ok := tables[Normalize(code)]; ok {
		return t
	}
	return tables[Default]
}

// DriverLabel returns the localized label for a risk driver.
func DriverLabel(code string, d types.Driver) string {
	if label, ok := lookup(code).drivers[d]; ok {
		return label
	}
	if label, ok := tables[Default].drivers[d]; ok {
		return label
	}
	return string(d)
}

// Summary renders the plain-language summary for an assessment.
// utilizationPct is formatted to one decimal place.
func Summary(code string, level types.RiskLevel, locationName, driverLabel string, utilizationPct float64) string {
	tmpl, ok := lookup(code).summary[level]
	if !ok {
		tmpl = tables[Default].summary[types.RiskGreen]
	}
	return fmt.Sprintf(tmpl, locationName, driverLabel, fmt.Sprintf("%.1f", utilizationPct))
}

// Message returns the localized mitigation copy for key.
func Message(code string, key MessageKey) string {
	if msg, ok := lookup(code).messages[key]; ok {
		return msg
	}
	return tables[Default].messages[key]
}
