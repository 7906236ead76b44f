package units

// Signal K paths arrive in SI units; the flat NMEA profile arrives already
// converted by the publisher (knots, degrees, Celsius).
var defaultQuantities = []Quantity{
	// Signal K
	{"environment.depth.belowKeel", Meter, GroupDepth, "Depth below keel"},
	{"environment.depth.belowSurface", Meter, GroupDepth, "Water depth"},
	{"environment.depth.belowTransducer", Meter, GroupDepth, "Depth below transducer"},
	{"environment.outside.pressure", Pascal, GroupPressure, "Pressure"},
	{"environment.outside.temperature", DegreeK, GroupTemperature, "Air temperature"},
	{"environment.water.temperature", DegreeK, GroupTemperature, "Water temperature"},
	{"environment.wind.angleApparent", Radian, GroupDirection, "Wind direction (apparent)"},
	{"environment.wind.directionTrue", Radian, GroupDirection, "Wind direction (true)"},
	{"environment.wind.speedApparent", MeterPerSecond, GroupSpeed, "Wind speed (apparent)"},
	{"environment.wind.speedOverGround", MeterPerSecond, GroupSpeed, "Wind speed (true)"},
	{"environment.wind.speedTrue", MeterPerSecond, GroupSpeed, "Wind speed (true)"},
	{"navigation.courseOverGroundTrue", Radian, GroupDirection, "Course over ground"},
	{"navigation.headingTrue", Radian, GroupDirection, "Heading"},
	{"navigation.log", Meter, GroupDistance, "Log"},
	{"navigation.position.latitude", DecimalDegrees, GroupLatitude, "Latitude"},
	{"navigation.position.longitude", DecimalDegrees, GroupLongitude, "Longitude"},
	{"navigation.speedOverGround", MeterPerSecond, GroupSpeed, "Speed over ground"},
	{"navigation.speedThroughWater", MeterPerSecond, GroupSpeed, "Speed through water"},
	{"steering.rudderAngle", Radian, GroupAngle, "Rudder angle"},

	// Flat profile
	{"latitude", DecimalDegrees, GroupLatitude, "Latitude"},
	{"longitude", DecimalDegrees, GroupLongitude, "Longitude"},
	{"sog_knots", Knot, GroupSpeed, "Speed over ground"},
	{"stw_knots", Knot, GroupSpeed, "Speed through water"},
	{"cog_true", DegreeTrue, GroupDirection, "Course over ground"},
	{"hdg_true", DegreeTrue, GroupDirection, "Heading"},
	{"depth_meters", Meter, GroupDepth, "Water depth"},
	{"tws_knots", Knot, GroupSpeed, "Wind speed (true)"},
	{"twd_true", DegreeTrue, GroupDirection, "Wind direction (true)"},
	{"aws_knots", Knot, GroupSpeed, "Wind speed (apparent)"},
	{"awa", DegreeAngle, GroupAngle, "Wind angle (apparent)"},
	{"temperature_water_celsius", DegreeC, GroupTemperature, "Water temperature"},
	{"temperature_air_celsius", DegreeC, GroupTemperature, "Air temperature"},
	{"rudder_angle", DegreeAngle, GroupAngle, "Rudder angle"},

	{"last_update", UnixEpoch, GroupTime, "Last update"},
}

var defaultPreferred = map[Group]Unit{
	GroupAngle:       DegreeAngle,
	GroupDepth:       Meter,
	GroupDirection:   DegreeTrue,
	GroupDistance:    NauticalMile,
	GroupLatitude:    DegreesMinutes,
	GroupLongitude:   DegreesMinutes,
	GroupPressure:    Millibar,
	GroupSpeed:       Knot,
	GroupTemperature: DegreeC,
	GroupTime:        UnixEpoch,
}

var defaultSuffixes = map[Unit]string{
	DegreeAngle:    "°",
	DegreeTrue:     "°",
	DegreeC:        "°C",
	DegreeF:        "°F",
	DegreeK:        " K",
	Foot:           " ft",
	Kilometer:      " km",
	KmPerHour:      " km/h",
	Knot:           " kn",
	Meter:          " m",
	MeterPerSecond: " m/s",
	MilePerHour:    " mph",
	Millibar:       " mbar",
	NauticalMile:   " nm",
	Pascal:         " Pa",
}

var defaultPrecision = map[Unit]int{
	DegreeC:        1,
	DegreeF:        1,
	DegreeK:        1,
	Millibar:       1,
	Pascal:         0,
	DegreeAngle:    1,
	DegreeTrue:     0,
	MeterPerSecond: 1,
	Knot:           1,
	KmPerHour:      1,
	MilePerHour:    1,
	Meter:          1,
	Foot:           1,
	NauticalMile:   1,
	Kilometer:      1,
}

const (
	knotsPerMPS    = 1.94384449
	degreesPerRad  = 57.295779513
	metersPerMile  = 1609.34
	feetPerMeter   = 3.280839895
	nmPerMeter     = 0.000539957
	kelvinOffset   = 273.15
	pascalsPerMbar = 100.0
)

var defaultConversions = map[Unit]map[Unit]ConversionFunc{
	DegreeK: {
		DegreeC: func(x float64) float64 { return x - kelvinOffset },
		DegreeF: func(x float64) float64 { return (x-kelvinOffset)*9/5 + 32 },
	},
	DegreeC: {
		DegreeF: func(x float64) float64 { return x*9/5 + 32 },
		DegreeK: func(x float64) float64 { return x + kelvinOffset },
	},
	Meter: {
		Foot:         func(x float64) float64 { return feetPerMeter * x },
		NauticalMile: func(x float64) float64 { return nmPerMeter * x },
		Kilometer:    func(x float64) float64 { return x / 1000.0 },
	},
	MeterPerSecond: {
		Knot:        func(x float64) float64 { return knotsPerMPS * x },
		MilePerHour: func(x float64) float64 { return 3600 * x / metersPerMile },
		KmPerHour:   func(x float64) float64 { return 3.6 * x },
	},
	Knot: {
		MeterPerSecond: func(x float64) float64 { return x / knotsPerMPS },
		KmPerHour:      func(x float64) float64 { return 3.6 * x / knotsPerMPS },
		MilePerHour:    func(x float64) float64 { return 3600 * x / knotsPerMPS / metersPerMile },
	},
	KmPerHour: {
		Knot:           func(x float64) float64 { return x / 3.6 * knotsPerMPS },
		MeterPerSecond: func(x float64) float64 { return x / 3.6 },
	},
	Radian: {
		DegreeAngle: func(x float64) float64 { return degreesPerRad * x },
		DegreeTrue:  func(x float64) float64 { return degreesPerRad * x },
	},
	DegreeTrue: {
		Radian: func(x float64) float64 { return x / degreesPerRad },
	},
	DegreeAngle: {
		DegreeTrue: func(x float64) float64 { return x },
		Radian:     func(x float64) float64 { return x / degreesPerRad },
	},
	Pascal: {
		Millibar: func(x float64) float64 { return x / pascalsPerMbar },
	},
	Millibar: {
		Pascal: func(x float64) float64 { return x * pascalsPerMbar },
	},
}
