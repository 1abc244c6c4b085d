package command

// sourceNames maps selector ids to display names, shared by every zone's
// selector command. Receivers report ids outside this set; those pass
// through as raw hex.
var sourceNames = map[string]string{
	"00": "VIDEO1",
	"01": "VIDEO2",
	"02": "GAME",
	"03": "AUX",
	"04": "GAME2",
	"05": "PC",
	"06": "VIDEO7",
	"07": "EXTRA1",
	"08": "EXTRA2",
	"09": "EXTRA3",
	"10": "DVD",
	"11": "STRM BOX",
	"12": "TV",
	"20": "TAPE",
	"21": "TAPE2",
	"22": "PHONO",
	"23": "CD",
	"24": "FM",
	"25": "AM",
	"26": "TUNER",
	"27": "MUSIC SERVER",
	"28": "INTERNET RADIO",
	"29": "USB",
	"2A": "USB(REAR)",
	"2B": "NETWORK",
	"2D": "AIRPLAY",
	"2E": "BLUETOOTH",
	"2F": "USB DAC IN",
	"30": "MULTI CH",
	"31": "XM",
	"32": "SIRIUS",
	"33": "DAB",
	"40": "UNIVERSAL PORT",
	"41": "LINE",
	"42": "LINE2",
	"44": "OPTICAL",
	"45": "COAXIAL",
	"55": "HDMI 5",
	"56": "HDMI 6",
	"57": "HDMI 7",
	"80": "MAIN SOURCE",
}

// listeningModeNames maps listening mode ids to display names (subset of the
// full vendor set; unknown ids pass through).
var listeningModeNames = map[string]string{
	"00": "STEREO",
	"01": "DIRECT",
	"02": "SURROUND",
	"03": "FILM",
	"04": "THX",
	"05": "ACTION",
	"06": "MUSICAL",
	"07": "MONO MOVIE",
	"08": "ORCHESTRA",
	"09": "UNPLUGGED",
	"0A": "STUDIO-MIX",
	"0B": "TV LOGIC",
	"0C": "ALL CH STEREO",
	"0D": "THEATER-DIMENSIONAL",
	"0E": "ENHANCED",
	"0F": "MONO",
	"11": "PURE AUDIO",
	"12": "MULTIPLEX",
	"13": "FULL MONO",
	"14": "DOLBY VIRTUAL",
	"16": "AUDYSSEY DSX",
	"40": "STRAIGHT DECODE",
	"41": "DOLBY EX",
	"42": "THX CINEMA",
	"43": "THX SURROUND EX",
	"44": "THX MUSIC",
	"45": "THX GAMES",
	"80": "PLII MOVIE",
	"81": "PLII MUSIC",
	"82": "NEO:6 CINEMA",
	"83": "NEO:6 MUSIC",
	"86": "PLII GAME",
}

// powerValues is the shared power token set.
var powerValues = map[string]string{
	"on":      "01",
	"off":     "00",
	"standby": "00",
}

// mutingValues is the shared muting token set.
var mutingValues = map[string]string{
	"on":  "01",
	"off": "00",
}

// hdmiOutValues maps hdmi output selections.
var hdmiOutValues = map[string]string{
	"no":   "00",
	"main": "01",
	"sub":  "02",
	"both": "03",
}

// MaxVolume is the protocol ceiling for volume commands (0xC8).
// The effective ceiling is the receiver's configured volume resolution.
const MaxVolume = 200

// MaxPreset is the highest tuner preset id (0x28).
const MaxPreset = 40

// DefaultTable returns the built-in command table for the standard Onkyo
// command set across four zones.
func DefaultTable() *Table {
	t, err := NewTable(defaultEntries())
	if err != nil {
		// The built-in entries are validated by tests; a failure here is a
		// programming error.
		panic("command: invalid built-in table: " + err.Error())
	}
	return t
}

func defaultEntries() []Command {
	upDown := []string{TokenUp, TokenDown}

	return []Command{
		// Main zone.
		{Zone: ZoneMain, Attribute: AttrPower, Prefix: "PWR", Kind: KindEnum, Values: powerValues},
		{Zone: ZoneMain, Attribute: AttrAudioMuting, Prefix: "AMT", Kind: KindEnum, Values: mutingValues, Sentinels: []string{TokenToggle}},
		{Zone: ZoneMain, Attribute: AttrVolume, Prefix: "MVL", Kind: KindRange, Max: MaxVolume, Sentinels: upDown},
		{Zone: ZoneMain, Attribute: AttrInputSelector, Prefix: "SLI", Kind: KindSelector, Values: sourceNames, Sentinels: upDown},
		{Zone: ZoneMain, Attribute: AttrListeningMode, Prefix: "LMD", Kind: KindSelector, Values: listeningModeNames, Sentinels: upDown},
		{Zone: ZoneMain, Attribute: AttrPreset, Prefix: "PRS", Kind: KindRange, Max: MaxPreset, Sentinels: upDown},
		{Zone: ZoneMain, Attribute: AttrAudioInfo, Prefix: "IFA", Kind: KindLiteral},
		{Zone: ZoneMain, Attribute: AttrVideoInfo, Prefix: "IFV", Kind: KindLiteral},
		{Zone: ZoneMain, Attribute: AttrHDMIOut, Prefix: "HDO", Kind: KindEnum, Values: hdmiOutValues},
		{Zone: ZoneMain, Attribute: AttrDisplayText, Prefix: "FLD", Kind: KindLiteral},

		// Zone 2.
		{Zone: Zone2, Attribute: AttrPower, Prefix: "ZPW", Kind: KindEnum, Values: powerValues},
		{Zone: Zone2, Attribute: AttrMuting, Prefix: "ZMT", Kind: KindEnum, Values: mutingValues, Sentinels: []string{TokenToggle}},
		{Zone: Zone2, Attribute: AttrVolume, Prefix: "ZVL", Kind: KindRange, Max: MaxVolume, Sentinels: upDown},
		{Zone: Zone2, Attribute: AttrSelector, Prefix: "SLZ", Kind: KindSelector, Values: sourceNames, Sentinels: upDown},
		{Zone: Zone2, Attribute: AttrPreset, Prefix: "PRZ", Kind: KindRange, Max: MaxPreset, Sentinels: upDown},

		// Zone 3.
		{Zone: Zone3, Attribute: AttrPower, Prefix: "PW3", Kind: KindEnum, Values: powerValues},
		{Zone: Zone3, Attribute: AttrMuting, Prefix: "MT3", Kind: KindEnum, Values: mutingValues, Sentinels: []string{TokenToggle}},
		{Zone: Zone3, Attribute: AttrVolume, Prefix: "VL3", Kind: KindRange, Max: MaxVolume, Sentinels: upDown},
		{Zone: Zone3, Attribute: AttrSelector, Prefix: "SL3", Kind: KindSelector, Values: sourceNames, Sentinels: upDown},
		{Zone: Zone3, Attribute: AttrPreset, Prefix: "PR3", Kind: KindRange, Max: MaxPreset, Sentinels: upDown},

		// Zone 4.
		{Zone: Zone4, Attribute: AttrPower, Prefix: "PW4", Kind: KindEnum, Values: powerValues},
		{Zone: Zone4, Attribute: AttrMuting, Prefix: "MT4", Kind: KindEnum, Values: mutingValues, Sentinels: []string{TokenToggle}},
		{Zone: Zone4, Attribute: AttrVolume, Prefix: "VL4", Kind: KindRange, Max: MaxVolume, Sentinels: upDown},
		{Zone: Zone4, Attribute: AttrSelector, Prefix: "SL4", Kind: KindSelector, Values: sourceNames, Sentinels: upDown},
		{Zone: Zone4, Attribute: AttrPreset, Prefix: "PR4", Kind: KindRange, Max: MaxPreset, Sentinels: upDown},

		// Device-level queries, reported under the main zone.
		{Zone: ZoneMain, Attribute: AttrSelfDescription, Prefix: "NRI", Kind: KindLiteral},
		{Zone: ZoneMain, Attribute: AttrIdentity, Prefix: "ECN", Kind: KindLiteral},
	}
}
