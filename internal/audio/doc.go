// Package audio reconstructs playable files from decrypted payloads.
//
// The payload's own magic bytes pick the codec; the container's claimed
// format is treated as a hint that can lie. Duration probing reads stream
// headers only (FLAC STREAMINFO, MP3 frame headers with Xing/VBRI support),
// never decodes audio. Tag embedding follows each codec's native
// convention: ID3v2 frames for MP3, VORBIS_COMMENT and PICTURE blocks for
// FLAC.
package audio
