// Package voxroom is a real-time spatial audio conferencing engine.
//
// A [Library] mixes rooms of participants in one output format. Every
// participant pushes fixed-size blocks of mono or stereo audio at its own
// sample rate and pulls a personal mix in which every other audible
// participant is placed in 3D around it.
//
// # Getting Started
//
//	lib, err := voxroom.Initialize(voxroom.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer lib.Destroy()
//
//	lib.CreateRoom(1)
//	lib.AddParticipant(1, 10, "alice", voxroom.ParticipantConfig{
//	    InputSampleRate: 16000, InputChannels: 1, Kind: voxroom.Regular,
//	})
//	lib.AddParticipant(1, 11, "bob", voxroom.ParticipantConfig{
//	    InputSampleRate: 48000, InputChannels: 1, Kind: voxroom.Regular,
//	})
//	lib.SetAllParticipantsState(1, control.Mixing3D, 1)
//
//	// every 10 ms
//	lib.InputAudioInt16(1, 10, alice, 160)
//	lib.InputAudioInt16(1, 11, bob, 480)
//	err = lib.OutputAudioInt16(1, 10, out) // bob, placed around alice
//
// # Audio Pipeline
//
// An input block is resampled to the output rate, downmixed to mono and run
// through the enhancement chain: noise suppression, automatic gain control
// and automatic equalization, each switched by its control. With
// [control.StereoBypass] on, the chain is skipped and the original channels
// are mixed flat.
//
// An output request collects every source the listener can hear: other
// Regular or SourceOnly participants that share its whisper and sidebar
// room, are not muted and pushed a block since the listener's last request.
// With [control.Mixing3D] on, each source is attenuated by distance, rendered
// binaurally for headphones or panned for speakers, and fed to a room
// reverb. With it off, sources are summed at unity.
//
// The engine never advances time on its own. Callers push one block per
// source and pull one block per listener every cycle; when nothing fresh is
// audible the output is silent and [ErrNoInputAudio] is returned.
//
// # Rooms and Layouts
//
// A room uses one layout of the catalog at a time. In open space
// participants are moved with [Library.SetParticipantPosition]; in a seated
// layout they occupy numbered seats ([Library.SetParticipantSeat]) and keep
// their seat number across layout changes when the new layout has it.
//
// # Concurrency
//
// All methods are safe for concurrent use. Input and output for different
// participants run in parallel; room structure changes are serialized per
// room. Events are delivered synchronously after the change, without any
// engine lock held.
package voxroom
