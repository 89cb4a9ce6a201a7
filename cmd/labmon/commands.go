package main

// allowedCommands is the allow list of SCPI commands the HTTP endpoint
// may pass through to the instrument. Queries only, plus the handful of
// harmless state commands used while babysitting a cooldown.
var allowedCommands = []string{
	// IEEE 488.2 common commands
	"*IDN?", // Identification
	"*OPC?", // Operation complete
	"*ESR?", // Event status register
	"*STB?", // Status byte
	"*CLS",  // Clear status
	"*WAI",  // Wait for pending operations

	// ZM2376 LCR meter
	":fetch?",              // Latest measurement
	":sour:freq?",          // Measurement frequency
	":sour:volt?",          // Measurement voltage level
	":sour:volt:offs?",     // DC bias level
	":calc1:form?",         // Primary parameter variable
	":calc2:form?",         // Secondary parameter variable
	":corr:shor?",          // Short correction state
	":corr:open?",          // Open correction state
	":corr:load?",          // Load correction state
	":corr:lim:low?",       // Correction lower limit
	":corr:lim:upp?",       // Correction upper limit
	":aver?",               // Averaging state
	":aver:coun?",          // Averaging count
	":sour:volt:offs:stat?", // DC bias state

	// ZNLE vector network analyzer
	"conf:chan:cat?",  // Channel catalog
	"disp:wind:cat?",  // Window catalog
	"freq:star?",      // Sweep start frequency
	"freq:stop?",      // Sweep stop frequency
	"freq:cent?",      // Sweep center frequency
	"freq:span?",      // Sweep span
	"swe:poin?",       // Sweep point count
	"swe:type?",       // Sweep type
	"band?",           // IF bandwidth
	":sour:pow?",      // Source power
	"aver:stat?",      // Averaging state
	"aver:coun?",      // Averaging count
	"syst:err:all?",   // Error queue
}
