package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Runtime parameters and their validity envelope.
 *
 * Description:	Parameters arrive from a YAML file or from remote
 *		commands, so every path funnels through Clamp: values
 *		are forced into range rather than rejected, because a
 *		deployed node with a bad stored parameter still has to
 *		come up on the air.  The ranges follow the radio's
 *		constraints: duty cycle is a percentage, and the
 *		listen-before-talk threshold is either 0 (disabled) or
 *		within the usable RSSI register range.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	lbtRssiMin = 25
	lbtRssiMax = 220
)

type Params struct {
	// DutyCycle is the maximum transmit airtime percentage, 0 for
	// unlimited.
	DutyCycle uint8 `yaml:"duty_cycle"`

	// LBTRssi is the listen-before-talk threshold: transmission is
	// deferred while the received signal strength is at or above
	// this value.  0 disables the check.
	LBTRssi uint8 `yaml:"lbt_rssi"`

	// NetworkID selects which traffic this node belongs to; frames
	// from other networks are discarded after decode.
	NetworkID uint16 `yaml:"network_id"`

	NodeID uint8 `yaml:"node_id"`

	// MaxPayload caps the payload bytes packed into one frame,
	// letting latency be traded against efficiency.
	MaxPayload int `yaml:"max_payload"`

	// TDMSlots is the number of transmit slots in the rotation.
	// 0 disables slotting entirely (pure carrier-sense operation).
	TDMSlots int `yaml:"tdm_slots"`

	// PacketGapTicks is how many ticks the serial drain waits after
	// the last host byte before sending a partial packet.
	PacketGapTicks int `yaml:"packet_gap_ticks"`
}

func DefaultParams() Params {
	return Params{
		DutyCycle:      0,
		LBTRssi:        0,
		NetworkID:      25,
		NodeID:         1,
		MaxPayload:     MaxPayloadSize,
		TDMSlots:       8,
		PacketGapTicks: 3,
	}
}

// Clamp forces every field into its valid range, in place.
func (p *Params) Clamp() {
	if p.DutyCycle > 100 {
		p.DutyCycle = 100
	}
	if p.LBTRssi != 0 {
		if p.LBTRssi < lbtRssiMin {
			p.LBTRssi = lbtRssiMin
		}
		if p.LBTRssi > lbtRssiMax {
			p.LBTRssi = lbtRssiMax
		}
	}
	if p.MaxPayload < 1 {
		p.MaxPayload = 1
	}
	if p.MaxPayload > MaxPayloadSize {
		p.MaxPayload = MaxPayloadSize
	}
	if p.TDMSlots < 0 {
		p.TDMSlots = 0
	}
	if p.TDMSlots > 255 {
		p.TDMSlots = 255
	}
	if p.PacketGapTicks < 0 {
		p.PacketGapTicks = 0
	}
}

// LoadParams reads a YAML parameter file, filling unset fields from
// the defaults and clamping the result.
func LoadParams(path string) (Params, error) {
	var p = DefaultParams()

	var raw, err = os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("reading parameter file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parsing parameter file %s: %w", path, err)
	}

	p.Clamp()
	return p, nil
}
