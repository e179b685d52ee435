package scoring

import "fmt"

// Tooltip is a structured explanation of one scoring metric, intended for UI
// presentation. The narrative reflects the metric's current value.
type Tooltip struct {
	Metric      string   `json:"metric"`
	Icon        string   `json:"icon"`
	Value       float64  `json:"value"`
	Weight      float64  `json:"weight"`
	Calculation string   `json:"calculation"`
	Narrative   string   `json:"narrative"`
	Tips        []string `json:"tips"`
}

// MetricTooltip returns the tooltip for the named metric (smoothness,
// compliance, safety, condition). Unknown names are a precondition failure.
func (e *Engine) MetricTooltip(name string) (Tooltip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch name {
	case "smoothness":
		return Tooltip{
			Metric:      "Smoothness",
			Icon:        "wave",
			Value:       e.smoothness,
			Weight:      0.25,
			Calculation: "Starts at 100; penalized for hard acceleration, harsh braking, sharp steering, and rough terrain handling; rewarded for holding a steady speed.",
			Narrative:   narrativeFor(e.smoothness, "Your inputs are smooth.", "Some inputs are abrupt.", "Frequent harsh inputs are costing points."),
			Tips: []string{
				"Accelerate and brake gradually",
				"Hold a constant speed with cruise control where possible",
			},
		}, nil
	case "compliance":
		compliance := e.compliancePctLocked()
		return Tooltip{
			Metric:      "Speed Compliance",
			Icon:        "gauge",
			Value:       compliance,
			Weight:      0.25,
			Calculation: "Time driven at or below the applicable speed limit, as a share of total driving time.",
			Narrative:   narrativeFor(compliance, "You keep to the posted limits.", "You occasionally exceed the limit.", "You spend much of your time over the limit."),
			Tips: []string{
				"Watch for posted limit changes",
				"Ease off before entering towns",
			},
		}, nil
	case "safety":
		return Tooltip{
			Metric:      "Safety",
			Icon:        "shield",
			Value:       e.safety,
			Weight:      0.25,
			Calculation: "Starts at 100; penalized for unsignaled turns, driving on the parking brake, misused high beams, over-revving, and overheated brakes; rewarded for engine braking on descents.",
			Narrative:   narrativeFor(e.safety, "Your habits are safe.", "A few unsafe habits showed up.", "Unsafe habits are dragging the score down."),
			Tips: []string{
				"Signal before turning",
				"Use the engine brake or retarder on long descents",
			},
		}, nil
	case "condition":
		condition := e.conditionLocked()
		return Tooltip{
			Metric:      "Vehicle Condition",
			Icon:        "truck",
			Value:       condition,
			Weight:      0.25,
			Calculation: "100 minus the current vehicle damage percentage, with a streak timer since the last new damage.",
			Narrative:   narrativeFor(condition, "The vehicle is in good shape.", "The vehicle has taken some damage.", "The vehicle is badly damaged."),
			Tips: []string{
				"Keep clear of obstacles and curbs",
				"Mind trailer swing in tight turns",
			},
		}, nil
	default:
		return Tooltip{}, fmt.Errorf("unknown metric: %q", name)
	}
}

func narrativeFor(value float64, good, neutral, poor string) string {
	switch classForValue(value) {
	case "good":
		return good
	case "neutral":
		return neutral
	default:
		return poor
	}
}
